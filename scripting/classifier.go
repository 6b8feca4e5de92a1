package scripting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/observability"
)

// ClassifyFunc is the global a classifier script must define. It receives
// the header title and its word count and returns a section type name, or
// null to fall through to the built-in patterns.
const ClassifyFunc = "classify"

var ErrNotFunction = errors.New("script global is not a function")

type ClassifierOptions struct {
	// Timeout bounds a single classify call. Zero means 100ms.
	Timeout time.Duration
	Logger  observability.Logger
}

// Classifier types section headers with a user script.
type Classifier struct {
	engine  *GojaEngine
	timeout time.Duration
	log     observability.Logger
}

type logHost struct{ log observability.Logger }

func (h logHost) Log(message string) {
	h.log.Debug("classifier script", observability.String("message", message))
}

// NewClassifier evaluates script and checks that it defines classify.
func NewClassifier(script string, opts ClassifierOptions) (*Classifier, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 100 * time.Millisecond
	}
	c := &Classifier{engine: NewEngine(), timeout: opts.Timeout, log: observability.OrNop(opts.Logger)}
	if err := c.engine.RegisterHost(logHost{log: c.log}); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()
	if _, err := c.engine.Execute(ctx, script); err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	if _, ok := goja.AssertFunction(c.engine.vm.Get(ClassifyFunc)); !ok {
		return nil, fmt.Errorf("load classifier: %w: %s", ErrNotFunction, ClassifyFunc)
	}
	return c, nil
}

// LoadClassifier reads a classifier script from path.
func LoadClassifier(path string, opts ClassifierOptions) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewClassifier(string(data), opts)
}

// Classify implements sections.Classifier. Script errors, timeouts and
// unknown type names are logged and treated as no answer.
func (c *Classifier) Classify(title string, words int) (model.SectionType, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	c.engine.mu.Lock()
	val, err := c.engine.call(ctx, ClassifyFunc, title, words)
	c.engine.mu.Unlock()
	if err != nil {
		c.log.Warn("classifier failed", observability.String("title", title), observability.Error("err", err))
		return "", false
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return "", false
	}
	name := strings.TrimSpace(val.String())
	if name == "" {
		return "", false
	}
	typ, err := model.ParseSectionType(name)
	if err != nil {
		c.log.Warn("classifier returned unknown type", observability.String("title", title), observability.String("type", name))
		return "", false
	}
	return typ, true
}
