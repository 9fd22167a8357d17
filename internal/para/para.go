// Package para binds Sage to the external PARA context provider, which
// supplies project/area/resource/task records relevant to a query.
package para

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags the shape of a gathered context. The set is closed; anything the
// provider returns that Sage does not model arrives as KindOpaque.
type Kind string

const (
	KindProjects  Kind = "projects"
	KindTasks     Kind = "tasks"
	KindResources Kind = "resources"
	KindNotes     Kind = "notes"
	KindOpaque    Kind = "opaque"
)

// Project is an active PARA project record.
type Project struct {
	Name        string `json:"name"`
	Area        string `json:"area,omitempty"`
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`
}

// Task is an actionable item, optionally attached to a project.
type Task struct {
	Title   string `json:"title"`
	Project string `json:"project,omitempty"`
	Due     string `json:"due,omitempty"`
	Done    bool   `json:"done,omitempty"`
}

// Resource is a reference item, typically a link.
type Resource struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Note is a free-form knowledge entry.
type Note struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

// Context is a tagged gather result. Exactly the slice named by Kind is
// populated; Raw holds the provider's payload verbatim for KindOpaque.
type Context struct {
	Kind      Kind            `json:"kind"`
	Projects  []Project       `json:"projects,omitempty"`
	Tasks     []Task          `json:"tasks,omitempty"`
	Resources []Resource      `json:"resources,omitempty"`
	Notes     []Note          `json:"notes,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// Provider gathers domain context for a query. A nil *Context with nil error
// means the provider had nothing relevant.
type Provider interface {
	Gather(ctx context.Context, query, userID string) (*Context, error)
}

// Empty reports whether the context carries nothing renderable.
func (c *Context) Empty() bool {
	if c == nil {
		return true
	}
	return len(c.Projects) == 0 && len(c.Tasks) == 0 &&
		len(c.Resources) == 0 && len(c.Notes) == 0 && len(c.Raw) == 0
}

// Render folds the context into prompt text.
func (c *Context) Render() string {
	if c.Empty() {
		return ""
	}

	var sb strings.Builder

	switch c.Kind {
	case KindProjects:
		sb.WriteString("Current projects:\n")
		for _, p := range c.Projects {
			sb.WriteString("- " + p.Name)
			if p.Area != "" {
				sb.WriteString(" (area: " + p.Area + ")")
			}
			if p.Status != "" {
				sb.WriteString(" [" + p.Status + "]")
			}
			if p.Description != "" {
				sb.WriteString(": " + p.Description)
			}
			sb.WriteString("\n")
		}
	case KindTasks:
		sb.WriteString("Open tasks:\n")
		for _, t := range c.Tasks {
			mark := " "
			if t.Done {
				mark = "x"
			}
			sb.WriteString(fmt.Sprintf("- [%s] %s", mark, t.Title))
			if t.Project != "" {
				sb.WriteString(" (project: " + t.Project + ")")
			}
			if t.Due != "" {
				sb.WriteString(" due " + t.Due)
			}
			sb.WriteString("\n")
		}
	case KindResources:
		sb.WriteString("Saved resources:\n")
		for _, r := range c.Resources {
			title := r.Title
			if title == "" {
				title = r.URL
			}
			sb.WriteString("- " + title)
			if r.URL != "" && r.Title != "" {
				sb.WriteString(" <" + r.URL + ">")
			}
			if r.Summary != "" {
				sb.WriteString(": " + r.Summary)
			}
			sb.WriteString("\n")
		}
	case KindNotes:
		sb.WriteString("Relevant notes:\n")
		for _, n := range c.Notes {
			if n.Title != "" {
				sb.WriteString("- " + n.Title + ": " + n.Body + "\n")
			} else {
				sb.WriteString("- " + n.Body + "\n")
			}
		}
	default:
		sb.WriteString("Context:\n")
		sb.Write(c.Raw)
		sb.WriteString("\n")
	}

	return sb.String()
}
