package domain

import "time"

// Message roles accepted by chat-style providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// Preferences are the user's inputs for generating a training plan.
type Preferences struct {
	Goal           string `json:"goal"            validate:"required,max=200"`
	System         string `json:"system"          validate:"required,max=200"`
	DaysPerWeek    int    `json:"days_per_week"   validate:"min=1,max=7"`
	SessionMinutes int    `json:"session_minutes" validate:"min=10,max=300"`
	CycleWeeks     int    `json:"cycle_weeks"     validate:"min=1,max=16"`
	Notes          string `json:"notes,omitempty" validate:"max=5000"`
}

// PlanStructure is the document a model must produce for a plan.
type PlanStructure struct {
	Name    string     `json:"name"              jsonschema:"description=Short plan title" validate:"required"`
	Summary string     `json:"summary,omitempty" jsonschema:"description=One paragraph rationale"`
	Weeks   []PlanWeek `json:"weeks"             validate:"required,min=1,dive"`
}

// PlanWeek groups the training days of one week of the cycle.
type PlanWeek struct {
	Week int       `json:"week" validate:"min=1"`
	Days []PlanDay `json:"days" validate:"required,min=1,dive"`
}

// PlanDay is a day template; day names repeat across weeks.
type PlanDay struct {
	Name      string         `json:"name"            validate:"required"`
	Focus     string         `json:"focus,omitempty"`
	Exercises []PlanExercise `json:"exercises"       validate:"required,min=1,dive"`
}

// PlanExercise is one prescribed exercise.
type PlanExercise struct {
	Name  string    `json:"name"            validate:"required"`
	Sets  []PlanSet `json:"sets"            validate:"required,min=1,dive"`
	Notes *string   `json:"notes,omitempty"`
}

// PlanSet is one prescribed set. Weight is nil for bodyweight work.
type PlanSet struct {
	Reps        int      `json:"reps"             validate:"min=1,max=100"`
	Weight      *float64 `json:"weight,omitempty" validate:"omitempty,gte=0"`
	RestSeconds int      `json:"rest_seconds"     validate:"min=0,max=900"`
}

// Plan is a stored training plan.
type Plan struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Preferences  Preferences   `json:"preferences"`
	Structure    PlanStructure `json:"structure"`
	Model        string        `json:"model"`
	FallbackUsed bool          `json:"fallback_used"`
	PreviousID   *string       `json:"previous_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	ArchivedAt   *time.Time    `json:"archived_at,omitempty"`
}

// Session statuses.
const (
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
)

// SessionDocument is the full state of one workout, planned vs. actual.
type SessionDocument struct {
	PlanName  string           `json:"plan_name" validate:"required"`
	DayName   string           `json:"day_name"  validate:"required"`
	Date      string           `json:"date"      validate:"required,datetime=2006-01-02"`
	Exercises []ExerciseRecord `json:"exercises" validate:"required,min=1,dive"`
}

// ExerciseRecord holds the sets of one exercise in a session.
type ExerciseRecord struct {
	Name string      `json:"name" validate:"required"`
	Sets []SetRecord `json:"sets" validate:"required,min=1,dive"`
}

// SetRecord is a single set; a completed set always has ActualReps.
type SetRecord struct {
	PlannedReps   int      `json:"planned_reps"   validate:"min=0"`
	PlannedWeight *float64 `json:"planned_weight" validate:"omitempty,gte=0"`
	ActualReps    *int     `json:"actual_reps"    validate:"omitempty,gte=0"`
	ActualWeight  *float64 `json:"actual_weight"  validate:"omitempty,gte=0"`
	RestSeconds   int      `json:"rest_seconds"   validate:"min=0"`
	Completed     bool     `json:"completed"`
}

// Clone returns a deep copy of the document.
func (d SessionDocument) Clone() SessionDocument {
	out := d
	out.Exercises = make([]ExerciseRecord, len(d.Exercises))
	for i, ex := range d.Exercises {
		sets := make([]SetRecord, len(ex.Sets))
		for j, s := range ex.Sets {
			sets[j] = SetRecord{
				PlannedReps:   s.PlannedReps,
				PlannedWeight: cloneFloat(s.PlannedWeight),
				ActualReps:    cloneInt(s.ActualReps),
				ActualWeight:  cloneFloat(s.ActualWeight),
				RestSeconds:   s.RestSeconds,
				Completed:     s.Completed,
			}
		}
		out.Exercises[i] = ExerciseRecord{Name: ex.Name, Sets: sets}
	}
	return out
}

// SessionEnvelope is the local-cache mirror of a session document.
type SessionEnvelope struct {
	Session   SessionDocument `json:"session"`
	Timestamp int64           `json:"timestamp"` // epoch millis
}

// SessionRecord is a stored workout session.
type SessionRecord struct {
	ID          string          `json:"id"`
	PlanID      string          `json:"plan_id"`
	Status      string          `json:"status"`
	Session     SessionDocument `json:"session"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
