package registry

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/toolmeta/toolregistry/internal/telemetry"
	"go.uber.org/zap"
)

// Config holds everything needed to construct a Registry.
type Config struct {
	// Store is the adapter-specific persistence handle. It is required.
	Store Store

	// AdminRole is the role token that grants management rights over all tools.
	// Defaults to DefaultAdminRole.
	AdminRole string

	// FormatNormalization names the normalization rule applied to format tokens.
	// Defaults to NormalizeCasefold.
	FormatNormalization string

	Logger  *zap.Logger
	Metrics telemetry.CustomMetrics

	// Now and NewID default to the wall clock and random UUIDs. Tests override them.
	Now   func() time.Time
	NewID func() string
}

// Registry is the facade exposed to the boundary layer.
// Every write runs validation, then authorization, then persistence.
// It holds no lock of its own: concurrent writers are serialized by the Store.
type Registry struct {
	store     Store
	validator *Validator
	evaluator *Evaluator
	resolver  *Resolver

	normalization string

	logger  *zap.Logger
	metrics telemetry.CustomMetrics

	now   func() time.Time
	newID func() string
}

// New creates a Registry from the given configuration.
func New(c *Config) (*Registry, error) {
	if c == nil || c.Store == nil {
		return nil, errors.New("registry requires a store")
	}
	normalize, err := NewNormalizer(c.FormatNormalization)
	if err != nil {
		return nil, err
	}

	validator := NewValidator(normalize)
	r := &Registry{
		store:     c.Store,
		validator: validator,
		evaluator: NewEvaluator(c.AdminRole),
		resolver:  NewResolver(c.Store, validator),
		logger:    c.Logger,
		metrics:   c.Metrics,
		now:       c.Now,
		newID:     c.NewID,

		normalization: c.FormatNormalization,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.metrics == nil {
		r.metrics = telemetry.NewNoopCustomMetrics()
	}
	if r.normalization == "" {
		r.normalization = NormalizeCasefold
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = func() string { return uuid.NewString() }
	}
	return r, nil
}

// AdminRole returns the role token this registry treats as admin.
func (r *Registry) AdminRole() string {
	return r.evaluator.AdminRole()
}

// FormatNormalization returns the name of the format normalization rule in effect.
func (r *Registry) FormatNormalization() string {
	return r.normalization
}

// NormalizeFormat applies the configured normalization rule to a single format identifier.
func (r *Registry) NormalizeFormat(raw string) (string, error) {
	return r.validator.NormalizeFormat(raw)
}

// Register validates doc and stores it as a new tool owned by the principal.
func (r *Registry) Register(ctx context.Context, p *Principal, doc Document) (rec *ToolRecord, err error) {
	const op = "register"
	defer r.observe(ctx, op, time.Now(), &err)

	if err := requirePrincipal(p); err != nil {
		return nil, withOp(op, err)
	}
	sub, err := r.validator.Validate(OpCreate, doc, "")
	if err != nil {
		return nil, withOp(op, err)
	}
	if err := decisionError(r.evaluator.Evaluate(p, OpCreate, "")); err != nil {
		return nil, withOp(op, err)
	}

	now := r.timestamp()
	rec = &ToolRecord{
		ToolID:             r.newID(),
		Name:               sub.Name,
		Version:            sub.Version,
		OwnerID:            p.ID,
		Description:        sub.Description,
		Location:           sub.Location,
		SupportedFormats:   sub.SupportedFormats,
		InvocationContract: sub.InvocationContract,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := r.store.Put(ctx, rec, 0); err != nil {
		return nil, withOp(op, err)
	}

	r.logger.Info("tool registered",
		zap.String("tool_id", rec.ToolID),
		zap.String("name", rec.Name),
		zap.String("owner_id", rec.OwnerID),
		zap.Strings("formats", rec.SupportedFormats),
	)
	return rec, nil
}

// Update replaces the metadata of an existing tool. Only its owner or an admin may do so.
// The tool id, owner and creation time are carried over from the stored record.
func (r *Registry) Update(ctx context.Context, p *Principal, toolID string, doc Document) (rec *ToolRecord, err error) {
	const op = "update"
	defer r.observe(ctx, op, time.Now(), &err)

	if err := requirePrincipal(p); err != nil {
		return nil, withOp(op, err)
	}
	sub, err := r.validator.Validate(OpUpdate, doc, toolID)
	if err != nil {
		return nil, withOp(op, err)
	}

	existing, err := r.store.Get(ctx, toolID)
	if err != nil {
		return nil, withOp(op, err)
	}
	if err := r.validator.CheckImmutable(existing, sub); err != nil {
		return nil, withOp(op, err)
	}
	if err := decisionError(r.evaluator.Evaluate(p, OpUpdate, existing.OwnerID)); err != nil {
		r.logger.Warn("tool update denied", zap.String("tool_id", toolID), zap.String("principal_id", p.ID))
		return nil, withOp(op, err)
	}

	rec = &ToolRecord{
		ToolID:             existing.ToolID,
		Name:               sub.Name,
		Version:            sub.Version,
		OwnerID:            existing.OwnerID,
		Description:        sub.Description,
		Location:           sub.Location,
		SupportedFormats:   sub.SupportedFormats,
		InvocationContract: sub.InvocationContract,
		CreatedAt:          existing.CreatedAt,
		UpdatedAt:          r.timestamp(),
	}
	if err := r.store.Put(ctx, rec, existing.Revision); err != nil {
		return nil, withOp(op, err)
	}

	retract, add := IndexDelta(existing.SupportedFormats, rec.SupportedFormats)
	r.logger.Info("tool updated",
		zap.String("tool_id", rec.ToolID),
		zap.String("principal_id", p.ID),
		zap.Strings("formats_added", add),
		zap.Strings("formats_retracted", retract),
	)
	return rec, nil
}

// Remove deletes a tool and retracts its format index entries. Only its owner or an admin may do so.
func (r *Registry) Remove(ctx context.Context, p *Principal, toolID string) (err error) {
	const op = "remove"
	defer r.observe(ctx, op, time.Now(), &err)

	if err := requirePrincipal(p); err != nil {
		return withOp(op, err)
	}
	existing, err := r.store.Get(ctx, toolID)
	if err != nil {
		return withOp(op, err)
	}
	if err := decisionError(r.evaluator.Evaluate(p, OpRemove, existing.OwnerID)); err != nil {
		r.logger.Warn("tool removal denied", zap.String("tool_id", toolID), zap.String("principal_id", p.ID))
		return withOp(op, err)
	}
	if err := r.store.Delete(ctx, toolID, existing.Revision); err != nil {
		return withOp(op, err)
	}

	r.logger.Info("tool removed", zap.String("tool_id", toolID), zap.String("principal_id", p.ID))
	return nil
}

// Resolve returns the tools supporting the given format, ranked.
func (r *Registry) Resolve(ctx context.Context, format string) (recs []*ToolRecord, err error) {
	const op = "resolve"
	defer r.observe(ctx, op, time.Now(), &err)

	recs, err = r.resolver.Resolve(ctx, format)
	if err != nil {
		return nil, withOp(op, err)
	}
	r.metrics.RecordResolveResults(ctx, len(recs))
	return recs, nil
}

// Get returns a single tool by id.
func (r *Registry) Get(ctx context.Context, toolID string) (rec *ToolRecord, err error) {
	const op = "get"
	defer r.observe(ctx, op, time.Now(), &err)

	rec, err = r.store.Get(ctx, toolID)
	if err != nil {
		return nil, withOp(op, err)
	}
	return rec, nil
}

// ListFilter narrows down List results. Empty fields don't filter.
type ListFilter struct {
	// NameContains keeps tools whose name contains this string, case-insensitively.
	NameContains string

	// Format keeps tools declaring this input format. It is normalized like a resolve query.
	Format string

	// OutputType keeps tools whose invocation contract declares an output of this type.
	// Both sides are compared after format normalization.
	OutputType string
}

// List returns all tools matching the filter, ordered by name and then tool id.
func (r *Registry) List(ctx context.Context, filter ListFilter) (recs []*ToolRecord, err error) {
	const op = "list"
	defer r.observe(ctx, op, time.Now(), &err)

	var format, outputType string
	if strings.TrimSpace(filter.Format) != "" {
		if format, err = r.validator.NormalizeFormat(filter.Format); err != nil {
			return nil, withOp(op, err)
		}
	}
	if strings.TrimSpace(filter.OutputType) != "" {
		if outputType, err = r.validator.NormalizeFormat(filter.OutputType); err != nil {
			return nil, withOp(op, err)
		}
	}

	all, err := r.store.List(ctx)
	if err != nil {
		return nil, withOp(op, err)
	}
	needle := strings.ToLower(strings.TrimSpace(filter.NameContains))
	recs = make([]*ToolRecord, 0, len(all))
	for _, rec := range all {
		if needle != "" && !strings.Contains(strings.ToLower(rec.Name), needle) {
			continue
		}
		if format != "" && !rec.SupportsFormat(format) {
			continue
		}
		if outputType != "" && !r.producesOutput(rec, outputType) {
			continue
		}
		recs = append(recs, rec)
	}
	slices.SortFunc(recs, func(a, b *ToolRecord) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ToolID, b.ToolID)
	})
	return recs, nil
}

func (r *Registry) producesOutput(rec *ToolRecord, outputType string) bool {
	for _, typ := range rec.OutputTypes() {
		if r.validator.normalize(typ) == outputType {
			return true
		}
	}
	return false
}

// IndexInconsistency describes a disagreement between a record's formats and the format index.
type IndexInconsistency struct {
	ToolID string `json:"tool_id"`
	Format string `json:"format"`

	// Problem is either "missing" (the record declares the format but is not indexed under it)
	// or "orphaned" (the index points at a tool that does not declare the format).
	Problem string `json:"problem"`
}

// VerifyIndex compares every record against the format index and reports disagreements.
// It never modifies the store. Orphaned entries are only detected under formats that
// at least one stored record declares.
func (r *Registry) VerifyIndex(ctx context.Context) ([]IndexInconsistency, error) {
	const op = "verify_index"

	records, err := r.store.List(ctx)
	if err != nil {
		return nil, withOp(op, err)
	}

	declared := make(map[string]map[string]struct{})
	for _, rec := range records {
		for _, f := range rec.SupportedFormats {
			if declared[f] == nil {
				declared[f] = make(map[string]struct{})
			}
			declared[f][rec.ToolID] = struct{}{}
		}
	}

	formats := make([]string, 0, len(declared))
	for f := range declared {
		formats = append(formats, f)
	}
	slices.Sort(formats)

	var problems []IndexInconsistency
	for _, f := range formats {
		ids, err := r.store.ListByFormat(ctx, f)
		if err != nil {
			return nil, withOp(op, err)
		}
		indexed := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			indexed[id] = struct{}{}
			if _, ok := declared[f][id]; !ok {
				problems = append(problems, IndexInconsistency{ToolID: id, Format: f, Problem: "orphaned"})
			}
		}
		missing := make([]string, 0)
		for id := range declared[f] {
			if _, ok := indexed[id]; !ok {
				missing = append(missing, id)
			}
		}
		slices.Sort(missing)
		for _, id := range missing {
			problems = append(problems, IndexInconsistency{ToolID: id, Format: f, Problem: "missing"})
		}
	}
	return problems, nil
}

// timestamp returns the current time truncated to microseconds, the finest precision
// all supported stores preserve.
func (r *Registry) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func (r *Registry) observe(ctx context.Context, op string, started time.Time, err *error) {
	outcome := telemetry.OutcomeSuccess
	if *err != nil {
		outcome = string(KindOf(*err))
	}
	r.metrics.RecordOperation(ctx, op, outcome, time.Since(started))
}

func requirePrincipal(p *Principal) error {
	if p == nil || p.ID == "" {
		return NewError(KindUnauthenticated, "authentication is required")
	}
	return nil
}
