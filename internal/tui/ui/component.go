package ui

// MenuHint is one key shown in the header menu.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // chat jumps, shown last and in their own colour
}

// Component is a page of the TUI.
type Component interface {
	Name() string
	Hints() []MenuHint
}

// Badged is a Component with a short live status for its crumb, such as
// the unread total of the inbox.
type Badged interface {
	Badge() string
}

// CrumbFor builds the crumb of c.
func CrumbFor(c Component) Crumb {
	cr := Crumb{Label: c.Name()}
	if b, ok := c.(Badged); ok {
		cr.Badge = b.Badge()
	}
	return cr
}
