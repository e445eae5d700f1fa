package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"schedulehub.org/internal/auth"
	"schedulehub.org/internal/catalog"
)

type groupRequest struct {
	Number    string `json:"number"`
	Direction string `json:"direction"`
	Profile   string `json:"profile"`
	FacultyID *int64 `json:"facultyId"`
}

func (g groupRequest) group() catalog.Group {
	return catalog.Group{Number: g.Number, Direction: g.Direction, Profile: g.Profile, FacultyID: g.FacultyID}
}

type subgroupRequest struct {
	Number  string `json:"number"`
	GroupID int64  `json:"groupId"`
	Size    int    `json:"size"`
}

func (s subgroupRequest) subgroup() catalog.Subgroup {
	return catalog.Subgroup{Number: s.Number, GroupID: s.GroupID, Size: s.Size}
}

type teacherRequest struct {
	FullName  string `json:"fullName"`
	Info      string `json:"info"`
	FacultyID *int64 `json:"facultyId"`
}

func (t teacherRequest) teacher() catalog.Teacher {
	return catalog.Teacher{FullName: t.FullName, Info: t.Info, FacultyID: t.FacultyID}
}

type scheduleRequest struct {
	SubgroupID int64  `json:"subgroupId"`
	TeacherID  *int64 `json:"teacherId"`
	Subject    string `json:"subject"`
	DayOfWeek  int    `json:"dayOfWeek"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Room       string `json:"room"`
}

func (s scheduleRequest) entry() catalog.ScheduleEntry {
	return catalog.ScheduleEntry{
		SubgroupID: s.SubgroupID,
		TeacherID:  s.TeacherID,
		Subject:    s.Subject,
		DayOfWeek:  s.DayOfWeek,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		Room:       s.Room,
	}
}

func (a *API) handleListFaculties(w http.ResponseWriter, r *http.Request) {
	faculties, err := a.catalog.ListFaculties(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(faculties))
}

func (a *API) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := a.catalog.ListGroups(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(groups))
}

func (a *API) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	// Anonymous and non-admin callers are rejected before the body is read.
	if err := auth.AccessFor(r.Context()).RequireAdmin(); err != nil {
		handleError(w, r, err)
		return
	}
	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	group, err := a.catalog.CreateGroup(r.Context(), req.group())
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/batches/%d", group.ID))
	writeJSON(w, http.StatusCreated, group)
}

func (a *API) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	group, err := a.catalog.UpdateGroup(r.Context(), id, req.group())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (a *API) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.catalog.DeleteGroup(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListSubgroups(w http.ResponseWriter, r *http.Request) {
	groupID, err := optionalID(r, "groupId")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	subgroups, err := a.catalog.ListSubgroups(r.Context(), groupID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(subgroups))
}

func (a *API) handleListSubgroupsByGroupNumber(w http.ResponseWriter, r *http.Request) {
	subgroups, err := a.catalog.ListSubgroupsByGroupNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(subgroups))
}

func (a *API) handleCreateSubgroup(w http.ResponseWriter, r *http.Request) {
	if err := auth.AccessFor(r.Context()).RequireAdmin(); err != nil {
		handleError(w, r, err)
		return
	}
	var req subgroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sg, err := a.catalog.CreateSubgroup(r.Context(), req.subgroup())
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/subgroup/%d", sg.ID))
	writeJSON(w, http.StatusCreated, sg)
}

func (a *API) handleUpdateSubgroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req subgroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sg, err := a.catalog.UpdateSubgroup(r.Context(), id, req.subgroup())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sg)
}

func (a *API) handleDeleteSubgroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.catalog.DeleteSubgroup(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := a.catalog.ListTeachers(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(teachers))
}

func (a *API) handleCreateTeacher(w http.ResponseWriter, r *http.Request) {
	if err := auth.AccessFor(r.Context()).RequireAdmin(); err != nil {
		handleError(w, r, err)
		return
	}
	var req teacherRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	teacher, err := a.catalog.CreateTeacher(r.Context(), req.teacher())
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/teacher/%d", teacher.ID))
	writeJSON(w, http.StatusCreated, teacher)
}

func (a *API) handleUpdateTeacher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req teacherRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	teacher, err := a.catalog.UpdateTeacher(r.Context(), id, req.teacher())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, teacher)
}

func (a *API) handleDeleteTeacher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.catalog.DeleteTeacher(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListSchedule(w http.ResponseWriter, r *http.Request) {
	filter, err := parseScheduleFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.catalog.ListSchedule(r.Context(), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(entries))
}

func (a *API) handleCreateScheduleEntry(w http.ResponseWriter, r *http.Request) {
	if err := auth.AccessFor(r.Context()).RequireAdmin(); err != nil {
		handleError(w, r, err)
		return
	}
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := a.catalog.CreateScheduleEntry(r.Context(), req.entry())
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/schedule/%d", entry.ID))
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handleUpdateScheduleEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := a.catalog.UpdateScheduleEntry(r.Context(), id, req.entry())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleDeleteScheduleEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.catalog.DeleteScheduleEntry(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseScheduleFilter(r *http.Request) (catalog.ScheduleFilter, error) {
	var (
		filter catalog.ScheduleFilter
		err    error
	)
	if filter.SubgroupID, err = optionalID(r, "subgroupId"); err != nil {
		return filter, err
	}
	if filter.TeacherID, err = optionalID(r, "teacherId"); err != nil {
		return filter, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("dayOfWeek")); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil || day < 1 || day > 7 {
			return filter, errors.New("dayOfWeek must be between 1 and 7")
		}
		filter.DayOfWeek = &day
	}
	return filter, nil
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
