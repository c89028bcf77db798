package internal

import "time"

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

type WorkerStatus string

const (
	WorkerActive   WorkerStatus = "ACTIVE"
	WorkerDisabled WorkerStatus = "DISABLED"
	WorkerDeleted  WorkerStatus = "DELETED"
)

type Worker struct {
	ID        int64        `json:"id"`
	UID       string       `json:"uid"`
	Name      string       `json:"name"`
	Role      Role         `json:"role"`
	Status    WorkerStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

func (w *Worker) IsAdmin() bool { return w != nil && w.Role == RoleAdmin }

type CategoryKind string

const (
	CategorySystem CategoryKind = "SYSTEM"
	CategoryCustom CategoryKind = "CUSTOM"
)

type DefaultList string

const (
	ListPrimary   DefaultList = "PRIMARY"
	ListSecondary DefaultList = "SECONDARY"
	ListHidden    DefaultList = "HIDDEN"
)

type Category struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Kind        CategoryKind `json:"kind"`
	Priority    int          `json:"priority"` // ascending = higher precedence
	DefaultList DefaultList  `json:"default_list"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TimeEntry is one recorded or in-progress span of work against a category.
// EndTime == nil means the entry is open. Duration is only stored once closed.
type TimeEntry struct {
	ID           int64      `json:"id"`
	WorkerID     int64      `json:"worker_id"`
	CategoryID   int64      `json:"category_id"`
	CategoryName string     `json:"category_name"` // snapshot taken when the category was assigned
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Duration     *int64     `json:"duration,omitempty"` // seconds
	IsManual     bool       `json:"is_manual"`
	IsEdited     bool       `json:"is_edited"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (e *TimeEntry) IsOpen() bool { return e.EndTime == nil }

// Degenerate entries are closed with a zero stored duration.
func (e *TimeEntry) IsDegenerate() bool {
	return e.EndTime != nil && e.Duration != nil && *e.Duration == 0
}

// Close sets the end time and the stored duration, clamping end to start.
func (e *TimeEntry) Close(end time.Time) {
	if end.Before(e.StartTime) {
		end = e.StartTime
	}
	d := int64(end.Sub(e.StartTime) / time.Second)
	e.EndTime = &end
	e.Duration = &d
}

// ElapsedSeconds is the stored duration for closed entries and now - start for open ones.
func (e *TimeEntry) ElapsedSeconds(now time.Time) int64 {
	if e.EndTime != nil {
		if e.Duration != nil {
			return *e.Duration
		}
		now = *e.EndTime
	}
	if now.Before(e.StartTime) {
		return 0
	}
	return int64(now.Sub(e.StartTime) / time.Second)
}

type EntryLabel string

const (
	LabelNormal       EntryLabel = "normal"
	LabelManual       EntryLabel = "manual"
	LabelEdited       EntryLabel = "edited"
	LabelManualEdited EntryLabel = "manual_edited"
)

func (e *TimeEntry) Label() EntryLabel {
	switch {
	case e.IsManual && e.IsEdited:
		return LabelManualEdited
	case e.IsManual:
		return LabelManual
	case e.IsEdited:
		return LabelEdited
	}
	return LabelNormal
}

type WorkerPreference struct {
	WorkerID  int64     `json:"worker_id"`
	Primary   []int64   `json:"primary"`
	Secondary []int64   `json:"secondary"`
	Hidden    []int64   `json:"hidden"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DailyStatus is the per (worker, business day) leave/fix record. HasUnstoppedTasks
// and NeedsFix are computed at query time and never persisted.
type DailyStatus struct {
	WorkerID          int64      `json:"worker_id"`
	Date              Day        `json:"date"`
	HasLeft           bool       `json:"has_left"`
	HasUnstoppedTasks bool       `json:"has_unstopped_tasks"`
	NeedsFix          bool       `json:"needs_fix"`
	IsFixed           bool       `json:"is_fixed"`
	LeftAt            *time.Time `json:"left_at,omitempty"`
	FixedAt           *time.Time `json:"fixed_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type SegmentKind string

const (
	SegmentTask  SegmentKind = "task"
	SegmentBreak SegmentKind = "break"
)

// Segment is one unit of a reconstructed day: a task backed by an entry or an inferred break.
type Segment struct {
	Kind            SegmentKind `json:"kind"`
	EntryID         int64       `json:"entry_id,omitempty"`
	CategoryID      int64       `json:"category_id,omitempty"`
	CategoryName    string      `json:"category_name,omitempty"`
	Label           EntryLabel  `json:"label,omitempty"`
	Start           time.Time   `json:"start"`
	End             time.Time   `json:"end"`
	DurationSeconds int64       `json:"duration_seconds"`
	Active          bool        `json:"active"`
}
