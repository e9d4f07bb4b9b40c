package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/scrapeerr"
)

// DefaultActionTimeout bounds every interactive step that sets no timeout.
const DefaultActionTimeout = 5 * time.Second

// Page is the slice of a live browser page the interactive variants drive.
// Implementations report an absent selector as ErrElementMissing and an
// expired wait as a TimeoutError.
type Page interface {
	URL() string
	Content() (string, error)
	Exists(selector string) (bool, error)
	IsEnabled(selector string) (bool, error)
	Click(selector string, timeout time.Duration) error
	WaitVisible(selector string, timeout time.Duration) error
	Press(key string) error
	Evaluate(expression string) (any, error)
}

// PageHandle is a page owned by one request.
type PageHandle interface {
	Page
	Close() error
}

type ActionKind int

const (
	ActionClick ActionKind = iota
	ActionWaitVisible
	ActionPress
	ActionRead
)

func (k ActionKind) String() string {
	switch k {
	case ActionClick:
		return "click"
	case ActionWaitVisible:
		return "wait"
	case ActionPress:
		return "press"
	case ActionRead:
		return "read"
	}
	return "unknown"
}

// Action is one bounded step of an interaction sequence.
type Action struct {
	Kind     ActionKind
	Selector string
	Key      string
	Name     string
	Timeout  time.Duration
	// Optional steps are skipped when they fail, e.g. closing an overlay that
	// may not have opened.
	Optional bool
}

func Click(selector string) Action {
	return Action{Kind: ActionClick, Selector: selector}
}

func WaitVisible(selector string) Action {
	return Action{Kind: ActionWaitVisible, Selector: selector}
}

func Press(key string) Action {
	return Action{Kind: ActionPress, Key: key}
}

// Read captures the page content under name.
func Read(name string) Action {
	return Action{Kind: ActionRead, Name: name}
}

func (a Action) Within(timeout time.Duration) Action {
	a.Timeout = timeout
	return a
}

func (a Action) AsOptional() Action {
	a.Optional = true
	return a
}

func (a Action) String() string {
	switch a.Kind {
	case ActionPress:
		return fmt.Sprintf("press %s", a.Key)
	case ActionRead:
		return fmt.Sprintf("read %s", a.Name)
	}
	return fmt.Sprintf("%s %s", a.Kind, a.Selector)
}

// Snapshot is the page content captured by a Read action.
type Snapshot struct {
	Name string
	HTML string
	Doc  *goquery.Document
}

// Snapshots indexes the results of RunActions by name.
type Snapshots []Snapshot

func (s Snapshots) Get(name string) (Snapshot, bool) {
	for _, snap := range s {
		if snap.Name == name {
			return snap, true
		}
	}
	return Snapshot{}, false
}

// RunActions executes the sequence in order. A required step that fails
// stops the sequence with a classified error: ErrElementMissing for absent
// selectors, TimeoutError for expired waits, ExtractionError otherwise.
func RunActions(ctx context.Context, page Page, actions ...Action) (Snapshots, error) {
	if page == nil {
		return nil, scrapeerr.ExtractionError{Field: "page", Err: scrapeerr.ErrNoBrowser}
	}

	var snapshots Snapshots
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return snapshots, scrapeerr.TimeoutError{Op: action.String(), Err: err}
			}
			return snapshots, err
		}

		snap, err := runAction(page, action)
		if err != nil {
			if action.Optional {
				continue
			}
			return snapshots, classify(action, err)
		}
		if snap != nil {
			snapshots = append(snapshots, *snap)
		}
	}
	return snapshots, nil
}

func runAction(page Page, action Action) (*Snapshot, error) {
	timeout := action.Timeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}

	switch action.Kind {
	case ActionClick:
		return nil, page.Click(action.Selector, timeout)
	case ActionWaitVisible:
		return nil, page.WaitVisible(action.Selector, timeout)
	case ActionPress:
		return nil, page.Press(action.Key)
	case ActionRead:
		html, err := page.Content()
		if err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, err
		}
		return &Snapshot{Name: action.Name, HTML: html, Doc: doc}, nil
	}
	return nil, fmt.Errorf("unknown action kind %d", action.Kind)
}

func classify(action Action, err error) error {
	var timeout scrapeerr.TimeoutError
	if errors.As(err, &timeout) || scrapeerr.IsStructural(err) {
		return err
	}
	if scrapeerr.IsTimeout(err) {
		return scrapeerr.TimeoutError{Op: action.String(), Err: err}
	}
	return scrapeerr.ExtractionError{Field: action.String(), Err: err}
}

// OneSize is the synthetic size list used when a page exposes no options.
func OneSize(inStock bool) []models.Size {
	return []models.Size{{Name: models.OneSizeLabel, InStock: inStock}}
}

// StructuralFallback converts a structural interaction failure into the One
// Size fallback. Any other error is returned unchanged.
func StructuralFallback(err error, addToCartEnabled bool) ([]models.Size, error) {
	if scrapeerr.IsStructural(err) {
		return OneSize(addToCartEnabled), nil
	}
	return nil, err
}
