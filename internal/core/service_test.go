package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"catchcore/internal/validation"
	"catchcore/pkg/domain"
)

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls    []metricsCall
	controls []ControlState
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) ObserveControl(_ context.Context, _ string, state ControlState, _ int) {
	c.controls = append(c.controls, state)
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

type capturePublisher struct {
	outcomes []ControlOutcome
	err      error
}

func (p *capturePublisher) Publish(_ context.Context, outcome ControlOutcome) error {
	p.outcomes = append(p.outcomes, outcome)
	return p.err
}

type testPlugin struct {
	name string
	rule Rule
}

func (p testPlugin) Name() string    { return p.name }
func (p testPlugin) Version() string { return "1.0.0" }

func (p testPlugin) Register(registry *PluginRegistry) error {
	if p.rule != nil {
		registry.RegisterRule(p.rule)
	}
	registry.RegisterTaxonGroupsNoWeight(" ska ")
	registry.RegisterTaxonGroupsNoLanding("SKA")
	return nil
}

func newTestService(opts ...ServiceOption) *Service {
	opts = append([]ServiceOption{WithClock(fixedClock())}, opts...)
	return NewInMemoryService(newStubSpecs(), validation.NewBuilder(), opts...)
}

func TestServiceSaveAndGetTree(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	group := domain.NewSortingBatch("", 0)
	group.TaxonGroup = taxonGroup("COD")
	sampling := domain.NewSamplingBatch(group)
	leafA := domain.NewIndividualBatch(0)
	leafA.Weight = measuredWeight(1.2)
	leafB := domain.NewIndividualBatch(0)
	leafB.Weight = measuredWeight(0.8)
	sampling.Children = []*domain.Batch{leafA, leafB}
	group.Children = []*domain.Batch{sampling}
	empty := domain.NewSortingBatch("", 0)
	tree := catchTree(group, empty)

	if err := svc.SaveTree(ctx, "op-1", tree, ComputeOptions{ProgramLabel: "SUMARiS"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	stored, err := svc.GetTree(ctx, "op-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(stored.Children) != 1 {
		t.Fatalf("expected empty group pruned, got %d children", len(stored.Children))
	}
	if stored.Children[0].RankOrder != 1 {
		t.Fatalf("expected renumbered group, got %d", stored.Children[0].RankOrder)
	}
	w := stored.Children[0].Children[0].Weight
	if w == nil || w.Value != 2 || !w.Computed {
		t.Fatalf("expected computed sampling weight 2, got %+v", w)
	}

	if err := svc.SaveTree(ctx, "op-2", nil, ComputeOptions{}); !errors.Is(err, domain.ErrMissingTree) {
		t.Fatalf("expected ErrMissingTree, got %v", err)
	}
	ids, err := svc.ListTrees(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "op-1" {
		t.Fatalf("unexpected ids %v err=%v", ids, err)
	}
}

func TestServiceNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	var notFound domain.ErrNotFound
	if _, err := svc.GetTree(ctx, "missing"); !errors.As(err, &notFound) || notFound.OperationID != "missing" {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.DeleteTree(ctx, "missing"); !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
	if _, err := svc.ComputeTree(ctx, "missing", ComputeOptions{}); !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound on compute, got %v", err)
	}
	if _, err := svc.ControlTree(ctx, "missing", ControlOptions{Program: legacyProgram(nil)}); !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound on control, got %v", err)
	}
}

func TestServiceControlTreePersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	publisher := &capturePublisher{}
	metrics := &captureMetricsRecorder{}
	svc := newTestService(WithOutcomePublisher(publisher), WithMetricsRecorder(metrics))

	bad := speciesGroup(2, "HKE", 10, 12)
	tree := catchTree(speciesGroup(1, "COD", 10, 5), bad)
	if err := svc.Store().Put(ctx, "op-1", tree); err != nil {
		t.Fatalf("seed: %v", err)
	}

	outcome, err := svc.ControlTree(ctx, "op-1", ControlOptions{Program: legacyProgram(nil)})
	if err != nil {
		t.Fatalf("control: %v", err)
	}
	if outcome.State != StateInvalid || outcome.Program != "SUMARiS" || !outcome.ControlledAt.Equal(fixedNow) {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.Errors["children.1.children.0.weight.value"] != domain.ErrorMax {
		t.Fatalf("unexpected errors %v", outcome.Errors)
	}
	if len(publisher.outcomes) != 1 || publisher.outcomes[0].OperationID != "op-1" {
		t.Fatalf("expected one published outcome, got %d", len(publisher.outcomes))
	}
	if len(metrics.controls) != 1 || metrics.controls[0] != StateInvalid {
		t.Fatalf("expected control observed, got %v", metrics.controls)
	}

	stored, err := svc.GetTree(ctx, "op-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !domain.IsInvalid(stored.Children[1]) || !domain.IsControlled(stored.Children[0]) {
		t.Fatalf("expected annotated tree persisted")
	}

	publisher.err = errors.New("bucket unavailable")
	if _, err := svc.ControlTree(ctx, "op-1", ControlOptions{Program: legacyProgram(nil)}); err == nil || !strings.Contains(err.Error(), "bucket unavailable") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestServiceObservability(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := newTestService(WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithTracer(tracer))

	if err := svc.SaveTree(ctx, "op-1", catchTree(speciesGroup(1, "COD", 10, 0)), ComputeOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !audit.has("save_tree", AuditStatusSuccess, func(e AuditEntry) bool {
		return e.OperationID == "op-1" && e.Action == AuditActionWrite && e.ID != "" && e.Timestamp.Equal(fixedNow)
	}) {
		t.Fatalf("expected audit entry for save_tree")
	}
	if _, err := svc.ComputeTree(ctx, "op-1", ComputeOptions{}); err != nil {
		t.Fatalf("compute: %v", err)
	}
	if err := svc.DeleteTree(ctx, "op-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteTree(ctx, "op-1"); err == nil {
		t.Fatalf("expected second delete to fail")
	}
	if !audit.has("delete_tree", AuditStatusError, func(e AuditEntry) bool { return e.Error != "" }) {
		t.Fatalf("expected audit error entry for delete_tree")
	}
	if !metrics.has("compute_tree", true) || !metrics.has("delete_tree", false) {
		t.Fatalf("expected metrics for compute and failed delete, got %v", metrics.calls)
	}
	if !tracer.has("save_tree", true) || !tracer.has("delete_tree", false) {
		t.Fatalf("expected spans, got %v", tracer.ended)
	}
	if len(tracer.started) != len(tracer.ended) {
		t.Fatalf("every span must end")
	}
}

func TestServiceLogsOperations(t *testing.T) {
	logger := &captureLogger{}
	svc := newTestService(WithLogger(logger))
	_, _ = svc.ListTrees(context.Background())
	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.infos) == 0 || logger.infos[0] != "core service operation" {
		t.Fatalf("expected operation log, got %v", logger.infos)
	}
}

func TestServiceInstallPlugin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	rule := ruleFunc{name: "plugin_warn", fn: func(RuleView) Result { return Result{} }}

	meta, err := svc.InstallPlugin(testPlugin{name: "rays", rule: rule})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if len(meta.Rules) != 1 || meta.Rules[0] != "plugin_warn" {
		t.Fatalf("unexpected rules %v", meta.Rules)
	}
	if len(meta.TaxonGroupsNoWeight) != 1 || meta.TaxonGroupsNoWeight[0] != "SKA" {
		t.Fatalf("expected normalised taxon groups, got %v", meta.TaxonGroupsNoWeight)
	}
	if _, err := svc.InstallPlugin(testPlugin{name: "rays"}); err == nil {
		t.Fatalf("expected duplicate plugin error")
	}
	if _, err := svc.InstallPlugin(nil); err == nil {
		t.Fatalf("expected nil plugin error")
	}
	if _, err := svc.InstallPlugin(testPlugin{name: "another"}); err != nil {
		t.Fatalf("install second: %v", err)
	}
	plugins := svc.RegisteredPlugins()
	if len(plugins) != 2 || plugins[0].Name != "another" {
		t.Fatalf("expected sorted plugins, got %v", plugins)
	}
	if len(svc.Controller().Rules().Rules()) != 2 {
		t.Fatalf("expected plugin rule registered next to the default rule")
	}

	group := domain.NewSortingBatch("", 1)
	group.TaxonGroup = taxonGroup("SKA")
	if err := svc.Store().Put(ctx, "op-1", catchTree(group)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	outcome, err := svc.ControlTree(ctx, "op-1", ControlOptions{Program: legacyProgram(map[string]string{domain.PropertyTaxonGroupsNoWeight: "RJB"})})
	if err != nil {
		t.Fatalf("control: %v", err)
	}
	if outcome.Errors["children.0.individualCount"] != domain.ErrorRequired {
		t.Fatalf("expected plugin no-weight group to require a count, got %v", outcome.Errors)
	}
}

func TestWithPluginTaxonGroups(t *testing.T) {
	svc := newTestService()
	svc.noWeight = []string{"SKA", "RJB"}
	program := legacyProgram(map[string]string{domain.PropertyTaxonGroupsNoWeight: "rjb", "other": "x"})
	merged := svc.withPluginTaxonGroups(program)
	if got := merged.Property(domain.PropertyTaxonGroupsNoWeight); got != "rjb,SKA" {
		t.Fatalf("unexpected merged list %q", got)
	}
	if merged.Property("other") != "x" {
		t.Fatalf("other properties must be kept")
	}
	if program.Property(domain.PropertyTaxonGroupsNoWeight) != "rjb" {
		t.Fatalf("input program must not be mutated")
	}
}

func TestNoopDefaults(t *testing.T) {
	var logger noopLogger
	logger.Debug("debug", "k", "v")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
	noopMetrics{}.Observe(context.Background(), "op", true, time.Second)
	noopAudit{}.Record(context.Background(), AuditEntry{})
	ctx, span := noopTracer{}.Start(context.Background(), "op")
	span.End(nil)
	if ctx == nil {
		t.Fatalf("expected context")
	}
	if now := ClockFunc(nil).Now(); now.Location() != time.UTC {
		t.Fatalf("expected UTC clock")
	}
}

func TestJSONTracerAndExpvarRecorder(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf, fixedClock())
	rec := NewExpvarMetricsRecorder("")
	svc := newTestService(WithTracer(tracer), WithMetricsRecorder(rec))
	ctx := context.Background()

	if err := svc.Store().Put(ctx, "op-1", catchTree(speciesGroup(1, "COD", 10, 0))); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.ControlTree(ctx, "op-1", ControlOptions{Program: legacyProgram(nil)}); err != nil {
		t.Fatalf("control: %v", err)
	}
	_, _ = svc.GetTree(ctx, "missing")

	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Operation != "control_tree" || entries[1].Status != "error" {
		t.Fatalf("unexpected trace entries %+v", entries)
	}
	if entries[0].TraceID == "" || !strings.Contains(buf.String(), `"operation":"control_tree"`) {
		t.Fatalf("expected JSON span output, got %s", buf.String())
	}

	snap := rec.Snapshot()
	if snap.Results["control_tree"]["success"] != 1 || snap.Results["get_tree"]["error"] != 1 {
		t.Fatalf("unexpected results %v", snap.Results)
	}
	if snap.Controls["SUMARiS"][StateValid.String()] != 1 {
		t.Fatalf("unexpected control counters %v", snap.Controls)
	}
	if !strings.HasPrefix(rec.Name(), "catchcore_service_metrics_") {
		t.Fatalf("unexpected expvar name %s", rec.Name())
	}
}
