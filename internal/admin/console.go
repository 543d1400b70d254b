// Package admin models the role-gated admin console: which sections a user
// sees, which actions they may run, and a bounded log of what was run.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vk/flowdash/internal/access"
	"github.com/vk/flowdash/internal/clock"
	"github.com/vk/flowdash/internal/session"
	"github.com/vk/flowdash/internal/telemetry"
)

var (
	// ErrForbidden is returned when the user lacks the action's permission.
	ErrForbidden = errors.New("permission denied")
	// ErrUnknownAction is returned for an action no section offers.
	ErrUnknownAction = errors.New("unknown action")
)

// DefaultActivityLimit bounds the activity log.
const DefaultActivityLimit = 50

// ViewAction is the telemetry action recorded when the console is opened.
const ViewAction = "admin_console_view"

// Action is something a user can trigger from a section.
type Action struct {
	Name       string            `json:"name"`
	Permission access.Permission `json:"permission"`
}

// Section is one panel of the console.
type Section struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Permission access.Permission `json:"permission"`
	Actions    []Action          `json:"actions"`
}

// sections is the fixed console layout.
var sections = []Section{
	{ID: "metrics", Title: "System Metrics", Permission: access.PermissionView},
	{ID: "workflows", Title: "Workflows", Permission: access.PermissionView, Actions: []Action{
		{Name: "workflow_edit", Permission: access.PermissionEdit},
		{Name: "workflow_view", Permission: access.PermissionView},
	}},
	{ID: "agents", Title: "Agents", Permission: access.PermissionView, Actions: []Action{
		{Name: "agent_edit", Permission: access.PermissionEdit},
		{Name: "agent_view", Permission: access.PermissionView},
	}},
	{ID: "policies", Title: "Policies", Permission: access.PermissionView, Actions: []Action{
		{Name: "policy_edit", Permission: access.PermissionEdit},
		{Name: "policy_view", Permission: access.PermissionView},
	}},
	{ID: "access_control", Title: "Access Control", Permission: access.PermissionManage, Actions: []Action{
		{Name: "access_control_manage", Permission: access.PermissionManage},
	}},
	{ID: "activity", Title: "Recent Activity", Permission: access.PermissionView},
}

var actionIndex = func() map[string]Action {
	idx := make(map[string]Action)
	for _, s := range sections {
		for _, a := range s.Actions {
			idx[a.Name] = a
		}
	}
	return idx
}()

// SectionView is a section as seen by one user.
type SectionView struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Visible bool     `json:"visible"`
	Actions []string `json:"actions"`
}

// Activity is one performed action.
type Activity struct {
	Action string      `json:"action"`
	UserID string      `json:"userId"`
	Role   access.Role `json:"role"`
	At     time.Time   `json:"at"`
}

// Console is the admin console model. It is safe for concurrent use.
type Console struct {
	emitter *telemetry.Emitter
	clock   clock.Clock
	logger  *slog.Logger
	limit   int

	mu       sync.Mutex
	activity []Activity
}

// Option configures a Console.
type Option func(*Console)

// WithClock sets the clock used to stamp activity.
func WithClock(c clock.Clock) Option {
	return func(con *Console) { con.clock = c }
}

// WithLogger sets the console's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Console) { c.logger = l }
}

// WithActivityLimit overrides DefaultActivityLimit.
func WithActivityLimit(n int) Option {
	return func(c *Console) { c.limit = n }
}

// NewConsole creates a console reporting to emitter. A nil emitter drops
// telemetry.
func NewConsole(emitter *telemetry.Emitter, opts ...Option) *Console {
	c := &Console{
		emitter: emitter,
		clock:   clock.New(),
		logger:  slog.Default(),
		limit:   DefaultActivityLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limit <= 0 {
		c.limit = DefaultActivityLimit
	}
	c.logger = c.logger.With("component", "admin_console")
	return c
}

// Sections lists every section with its visibility and the actions u may
// run there. Hidden sections list no actions.
func (c *Console) Sections(u *session.User) []SectionView {
	out := make([]SectionView, 0, len(sections))
	for _, s := range sections {
		v := SectionView{ID: s.ID, Title: s.Title, Visible: u.Can(s.Permission), Actions: []string{}}
		if v.Visible {
			for _, a := range s.Actions {
				if u.Can(a.Permission) {
					v.Actions = append(v.Actions, a.Name)
				}
			}
		}
		out = append(out, v)
	}
	return out
}

// Opened records a console view for u.
func (c *Console) Opened(ctx context.Context, u *session.User) {
	md := map[string]any{}
	if u != nil {
		md["userId"] = u.ID
	}
	c.emitter.View(ctx, ViewAction, md)
}

// Perform runs action on behalf of u.
func (c *Console) Perform(ctx context.Context, u *session.User, action string) (Activity, error) {
	a, ok := actionIndex[action]
	if !ok {
		return Activity{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if !u.Can(a.Permission) {
		return Activity{}, fmt.Errorf("%w: %s requires %s", ErrForbidden, action, a.Permission)
	}

	entry := Activity{Action: action, UserID: u.ID, Role: u.Role, At: c.clock.Now()}
	c.emitter.Emit(ctx, telemetry.Event{
		Type:      telemetry.TypeUserAction,
		Action:    action,
		Timestamp: entry.At.UTC(),
		Metadata:  map[string]any{"userId": u.ID, "role": string(u.Role)},
	})

	c.mu.Lock()
	c.activity = append(c.activity, entry)
	if over := len(c.activity) - c.limit; over > 0 {
		c.activity = append(c.activity[:0:0], c.activity[over:]...)
	}
	c.mu.Unlock()

	c.logger.Info("Admin action performed.", "action", action, "userId", u.ID, "role", u.Role)
	return entry, nil
}

// Recent returns up to n activity entries, newest first. n <= 0 returns all.
func (c *Console) Recent(n int) []Activity {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n <= 0 || n > len(c.activity) {
		n = len(c.activity)
	}
	out := make([]Activity, 0, n)
	for i := len(c.activity) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, c.activity[i])
	}
	return out
}
