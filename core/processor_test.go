package core_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Skryldev/imagecore/config"
	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
	"github.com/Skryldev/imagecore/hooks"
	"github.com/Skryldev/imagecore/utils"
)

// stepFunc adapts a function into a named core.Step.
type stepFunc struct {
	name string
	fn   func(*core.ImageData) (*core.ImageData, error)
}

func (s stepFunc) Name() string { return s.name }
func (s stepFunc) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	return s.fn(img)
}

func passThrough(name string) core.Step {
	return stepFunc{name: name, fn: func(img *core.ImageData) (*core.ImageData, error) { return img, nil }}
}

// hookLog records hook calls in order.
type hookLog struct {
	mu    sync.Mutex
	calls []string
}

func (h *hookLog) BeforeStep(_ context.Context, name string, _ *core.ImageData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "before:"+name)
}

func (h *hookLog) AfterStep(_ context.Context, name string, _ *core.ImageData, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	suffix := ""
	if err != nil {
		suffix = "!"
	}
	h.calls = append(h.calls, "after:"+name+suffix)
}

func newProcessor(t *testing.T, mutate func(*config.Config)) *core.Processor {
	t.Helper()
	cfg := config.Default()
	cfg.RetryDelay = time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	lib := core.NewLibrary(cfg, builtins())
	if err := lib.Initialise(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { lib.DeInitialise() })
	return core.New(cfg, lib)
}

func TestProcessResolvesFormat(t *testing.T) {
	p := newProcessor(t, nil)
	tests := []struct {
		name string
		src  core.Source
		want core.FormatID
	}{
		{"content", core.Source{Reader: strings.NewReader("AAA payload")}, 0},
		{"content beats mime", core.Source{Reader: strings.NewReader("AAA"), ContentType: "image/x-bbb"}, 0},
		{"mime", core.Source{Reader: strings.NewReader("zzz"), ContentType: "image/x-bbb"}, 1},
		{"name", core.Source{Reader: strings.NewReader("zzz"), Name: "dir/scan.BBBX"}, 1},
		{"none", core.Source{Reader: strings.NewReader("zzz")}, core.FormatUnknown},
	}
	for _, tc := range tests {
		res, err := p.Process(context.Background(), tc.src, passThrough("noop"))
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if res.Primary.Format != tc.want {
			t.Errorf("%s: got format %d, want %d", tc.name, res.Primary.Format, tc.want)
		}
		if res.Primary.OriginalSize != int64(len(res.Primary.Data)) {
			t.Errorf("%s: OriginalSize %d, data %d", tc.name, res.Primary.OriginalSize, len(res.Primary.Data))
		}
	}
}

func TestProcessRejects(t *testing.T) {
	p := newProcessor(t, func(c *config.Config) { c.MaxImageBytes = 4 })

	_, err := p.Process(context.Background(), core.Source{Reader: strings.NewReader("AAA")})
	if !errors.Is(err, apperrors.ErrEmptyInput) {
		t.Errorf("no steps: got %v, want ErrEmptyInput", err)
	}

	_, err = p.Process(context.Background(), core.Source{Reader: strings.NewReader("AAA too long")}, passThrough("noop"))
	if !errors.Is(err, utils.ErrTooLarge) {
		t.Errorf("oversized: got %v, want ErrTooLarge", err)
	}
	if !apperrors.IsCategory(err, apperrors.CategoryInput) {
		t.Errorf("oversized: category %q", apperrors.CategoryOf(err))
	}

	lib := core.NewLibrary(config.Default(), builtins())
	idle := core.New(config.Default(), lib)
	_, err = idle.Process(context.Background(), core.Source{Reader: strings.NewReader("AAA")}, passThrough("noop"))
	if !errors.Is(err, apperrors.ErrNotInitialised) {
		t.Errorf("uninitialised: got %v, want ErrNotInitialised", err)
	}
}

func TestProcessHooksAndMetrics(t *testing.T) {
	p := newProcessor(t, nil)
	log := &hookLog{}
	metrics := hooks.NewInMemoryMetrics()
	p.AddHook(log)
	p.AddHook(hooks.NewMetricsHook(metrics))
	p.SetMetrics(metrics)

	fail := stepFunc{name: "fail", fn: func(*core.ImageData) (*core.ImageData, error) {
		return nil, apperrors.New(apperrors.CategoryDecode, "fail", errors.New("boom"))
	}}
	_, err := p.Process(context.Background(), core.Source{Reader: strings.NewReader("AAA")},
		passThrough("first"), fail, passThrough("never"))
	if !apperrors.IsCategory(err, apperrors.CategoryDecode) {
		t.Fatalf("got %v, want a decode error", err)
	}

	want := []string{"before:first", "after:first", "before:fail", "after:fail!"}
	if diff := cmp.Diff(want, log.calls); diff != "" {
		t.Errorf("hook calls (-want +got):\n%s", diff)
	}
	snap := metrics.Snapshot()
	if snap.TotalMemoryB != 3 {
		t.Errorf("memory: got %d, want 3", snap.TotalMemoryB)
	}
	if snap.StepErrors["fail"] != 1 {
		t.Errorf("step errors: got %d, want 1", snap.StepErrors["fail"])
	}
	if p.ProcessedCount() != 0 || p.ErrorCount() != 1 {
		t.Errorf("counts: processed %d, errors %d", p.ProcessedCount(), p.ErrorCount())
	}
}

func TestProcessRetriesTransient(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		failures   int
		wantErr    bool
		wantCalls  int
	}{
		{"recovers", 2, 2, false, 3},
		{"exhausted", 1, 5, true, 2},
		{"no retries", 0, 1, true, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newProcessor(t, func(c *config.Config) { c.MaxRetries = tc.maxRetries })
			calls := 0
			flaky := stepFunc{name: "flaky", fn: func(img *core.ImageData) (*core.ImageData, error) {
				calls++
				if calls <= tc.failures {
					return nil, apperrors.Transient("flaky", errors.New("busy"))
				}
				return img, nil
			}}
			_, err := p.Process(context.Background(), core.Source{Reader: strings.NewReader("AAA")}, flaky)
			if (err != nil) != tc.wantErr {
				t.Errorf("got err %v, want error %v", err, tc.wantErr)
			}
			if calls != tc.wantCalls {
				t.Errorf("got %d calls, want %d", calls, tc.wantCalls)
			}
		})
	}
}

func TestProcessPermanentErrorNotRetried(t *testing.T) {
	p := newProcessor(t, func(c *config.Config) { c.MaxRetries = 3 })
	calls := 0
	step := stepFunc{name: "bad", fn: func(*core.ImageData) (*core.ImageData, error) {
		calls++
		return nil, errors.New("permanent")
	}}
	if _, err := p.Process(context.Background(), core.Source{Reader: strings.NewReader("AAA")}, step); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("got %d calls, want 1", calls)
	}
}

func TestProcessCancelled(t *testing.T) {
	p := newProcessor(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, core.Source{Reader: strings.NewReader("AAA")}, passThrough("noop"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestBatch(t *testing.T) {
	p := newProcessor(t, nil)
	sources := []core.Source{
		{Reader: strings.NewReader("AAA")},
		{Reader: strings.NewReader("BBB")},
		{Reader: strings.NewReader("zzz")},
	}
	results, errs := p.Batch(context.Background(), sources, passThrough("noop"))
	want := []core.FormatID{0, 1, core.FormatUnknown}
	for i := range sources {
		if errs[i] != nil {
			t.Fatalf("source %d: %v", i, errs[i])
		}
		if results[i].Primary.Format != want[i] {
			t.Errorf("source %d: got format %d, want %d", i, results[i].Primary.Format, want[i])
		}
	}
	if p.ProcessedCount() != 3 {
		t.Errorf("processed: got %d, want 3", p.ProcessedCount())
	}
}
