package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const clockLayout = "15:04"

var (
	ErrNotFound     = errors.New("catalog: not found")
	ErrInvalidInput = errors.New("catalog: invalid input")
	ErrConflict     = errors.New("catalog: conflict")
)

// Group is an academic group (a "batch") owned by a faculty.
type Group struct {
	ID        int64  `json:"id"`
	Number    string `json:"number"`
	Direction string `json:"direction"`
	Profile   string `json:"profile"`
	FacultyID *int64 `json:"facultyId"`
}

func (g Group) OwningFaculty() (int64, bool) { return deref(g.FacultyID) }

// Subgroup belongs to a group; its faculty is the group's faculty.
type Subgroup struct {
	ID          int64  `json:"id"`
	Number      string `json:"number"`
	GroupID     int64  `json:"groupId"`
	GroupNumber string `json:"groupNumber,omitempty"`
	Size        int    `json:"size"`
	// FacultyID is resolved through the parent group and never written.
	FacultyID *int64 `json:"facultyId"`
}

func (s Subgroup) OwningFaculty() (int64, bool) { return deref(s.FacultyID) }

// Teacher is a lecturer listed in the schedule.
type Teacher struct {
	ID        int64  `json:"id"`
	FullName  string `json:"fullName"`
	Info      string `json:"info,omitempty"`
	FacultyID *int64 `json:"facultyId"`
}

func (t Teacher) OwningFaculty() (int64, bool) { return deref(t.FacultyID) }

// ScheduleEntry is a single class slot of a subgroup.
type ScheduleEntry struct {
	ID         int64  `json:"id"`
	SubgroupID int64  `json:"subgroupId"`
	TeacherID  *int64 `json:"teacherId,omitempty"`
	Subject    string `json:"subject"`
	DayOfWeek  int    `json:"dayOfWeek"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Room       string `json:"room,omitempty"`
	// FacultyID is resolved through subgroup and group.
	FacultyID *int64 `json:"facultyId"`
}

func (e ScheduleEntry) OwningFaculty() (int64, bool) { return deref(e.FacultyID) }

// ScheduleFilter narrows schedule listings; zero values match everything.
type ScheduleFilter struct {
	SubgroupID *int64
	TeacherID  *int64
	DayOfWeek  *int
}

func deref(id *int64) (int64, bool) {
	if id == nil {
		return 0, false
	}
	return *id, true
}

func (g *Group) normalize() error {
	g.Number = strings.TrimSpace(g.Number)
	g.Direction = strings.TrimSpace(g.Direction)
	g.Profile = strings.TrimSpace(g.Profile)
	if g.Number == "" {
		return fmt.Errorf("%w: group number is required", ErrInvalidInput)
	}
	return nil
}

func (s *Subgroup) normalize() error {
	s.Number = strings.TrimSpace(s.Number)
	if s.Number == "" {
		return fmt.Errorf("%w: subgroup number is required", ErrInvalidInput)
	}
	if s.GroupID <= 0 {
		return fmt.Errorf("%w: groupId is required", ErrInvalidInput)
	}
	if s.Size < 0 {
		return fmt.Errorf("%w: size must not be negative", ErrInvalidInput)
	}
	return nil
}

func (t *Teacher) normalize() error {
	t.FullName = strings.TrimSpace(t.FullName)
	t.Info = strings.TrimSpace(t.Info)
	if t.FullName == "" {
		return fmt.Errorf("%w: teacher name is required", ErrInvalidInput)
	}
	return nil
}

// normalize validates a class slot: day 1..7 and HH:MM times with the start
// strictly before the end.
func (e *ScheduleEntry) normalize() error {
	e.Subject = strings.TrimSpace(e.Subject)
	e.Room = strings.TrimSpace(e.Room)
	e.StartTime = strings.TrimSpace(e.StartTime)
	e.EndTime = strings.TrimSpace(e.EndTime)
	if e.SubgroupID <= 0 {
		return fmt.Errorf("%w: subgroupId is required", ErrInvalidInput)
	}
	if e.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if e.DayOfWeek < 1 || e.DayOfWeek > 7 {
		return fmt.Errorf("%w: dayOfWeek must be between 1 and 7", ErrInvalidInput)
	}
	start, err := time.Parse(clockLayout, e.StartTime)
	if err != nil {
		return fmt.Errorf("%w: startTime must be HH:MM", ErrInvalidInput)
	}
	end, err := time.Parse(clockLayout, e.EndTime)
	if err != nil {
		return fmt.Errorf("%w: endTime must be HH:MM", ErrInvalidInput)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: startTime must be before endTime", ErrInvalidInput)
	}
	if e.TeacherID != nil && *e.TeacherID <= 0 {
		e.TeacherID = nil
	}
	return nil
}
