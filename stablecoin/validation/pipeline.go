package validation

import (
	"context"
	"errors"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"go.opentelemetry.io/otel/attribute"
)

// CheckFunc is one pre-flight check.
type CheckFunc func(ctx context.Context) error

// Step is a named check.
type Step struct {
	Name  string
	Check CheckFunc
}

// Pipeline runs named steps in order and stops at the first failure.
type Pipeline struct {
	name   string
	steps  []Step
	logger log.Logger
}

// NewPipeline returns an empty pipeline.
func NewPipeline(name string, logger log.Logger) *Pipeline {
	return &Pipeline{name: name, logger: log.OrNop(logger)}
}

// Add appends a step and returns p for chaining.
func (p *Pipeline) Add(name string, check CheckFunc) *Pipeline {
	p.steps = append(p.steps, Step{Name: name, Check: check})
	return p
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}

	return names
}

// Run executes the steps. The failing step is logged and recorded as a
// span event before its error is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "validation."+p.name)
	defer span.End()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := step.Check(ctx)
		if err == nil {
			continue
		}

		var violation *stablecoin.BusinessRuleViolation
		if errors.As(err, &violation) {
			opentelemetry.HandleSpanBusinessErrorEvent(&span, "validation step failed", err)
			p.logger.Log(ctx, log.LevelWarn, "validation step failed",
				log.String("pipeline", p.name), log.String("step", step.Name), log.String("code", violation.Code()))
		} else {
			opentelemetry.HandleSpanError(&span, "validation step errored", err)
			p.logger.Log(ctx, log.LevelError, "validation step errored",
				log.String("pipeline", p.name), log.String("step", step.Name), log.Err(err))
		}

		span.SetAttributes(attribute.String(constant.AttrStep, step.Name))

		return err
	}

	return nil
}
