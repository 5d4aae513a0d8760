package models

import "time"

type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountDisabled AccountStatus = "disabled"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

type Account struct {
	ID             string
	Username       string
	Email          *string
	PasswordHash   string
	Role           string
	Status         AccountStatus
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	LastLoginAt    *time.Time
}

// Profile is the public view of an Account.
type Profile struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (a Account) Profile() Profile {
	p := Profile{ID: a.ID, Username: a.Username, Role: a.Role, LastLoginAt: a.LastLoginAt}
	if a.Email != nil {
		p.Email = *a.Email
	}
	return p
}

type Session struct {
	ID        string
	AccountID string
	TokenHash string
	ClientIP  string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
	Active    bool
}

// ValidAt reports whether the session can authenticate a request at now.
func (s Session) ValidAt(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}

type ActivityRecord struct {
	ID          string         `json:"id"`
	ActorID     *string        `json:"actor_id"`
	ActorName   string         `json:"actor_name,omitempty"`
	Action      string         `json:"action"`
	Detail      *string        `json:"detail"`
	ClientIP    string         `json:"client_ip"`
	ClientAgent string         `json:"client_agent"`
	Client      *ClientSummary `json:"client,omitempty"`
	Success     bool           `json:"success"`
	CreatedAt   time.Time      `json:"created_at"`
}

type ClientSummary struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Device  string `json:"device"`
}

type ActivityQuery struct {
	Q       string
	ActorID string
	Action  string
	Success *bool
	From    time.Time
	To      time.Time
	Order   string
	Limit   int
	Offset  int
}

type QuestionKind string

const (
	KindText     QuestionKind = "text"
	KindTextarea QuestionKind = "textarea"
	KindEmail    QuestionKind = "email"
	KindPhone    QuestionKind = "phone"
	KindNumber   QuestionKind = "number"
	KindSelect   QuestionKind = "select"
	KindCheckbox QuestionKind = "checkbox"
)

type Question struct {
	ID       string       `json:"id"`
	Key      string       `json:"key"`
	Label    string       `json:"label"`
	Kind     QuestionKind `json:"kind"`
	Required bool         `json:"required"`
	Options  []string     `json:"options,omitempty"`
	Position int          `json:"position"`
}

type Questionnaire struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	NotifyEmail string     `json:"notify_email,omitempty"`
	Active      bool       `json:"active"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Questions   []Question `json:"questions"`
}

type Submission struct {
	ID              string            `json:"id"`
	QuestionnaireID string            `json:"questionnaire_id"`
	Answers         map[string]string `json:"answers"`
	ClientIP        string            `json:"client_ip"`
	UserAgent       string            `json:"user_agent"`
	CreatedAt       time.Time         `json:"created_at"`
	NotifiedAt      *time.Time        `json:"notified_at,omitempty"`
	NotifyError     *string           `json:"notify_error,omitempty"`
}
