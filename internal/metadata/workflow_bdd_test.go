// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/pdiddy/design-engine/internal/workspace"
	"github.com/pdiddy/design-engine/pkg/types"
)

var (
	errExpectedProgress   = errors.New("expected the spec to progress")
	errUnexpectedProgress = errors.New("expected the spec not to progress")
	errExpectedFailure    = errors.New("expected the last operation to fail")
)

type workflowContext struct {
	root    string
	spec    string
	store   *Store
	lastErr error
}

func (w *workflowContext) aSpecWithNoMetadata(spec string) error {
	root, err := os.MkdirTemp("", "workflow-bdd-*")
	if err != nil {
		return err
	}
	w.root, w.spec, w.lastErr = root, spec, nil
	if err := os.MkdirAll(filepath.Join(root, spec), 0o755); err != nil {
		return err
	}
	w.store = New(Options{Layout: workspace.Layout{Root: root}, CacheEnabled: true})
	return nil
}

func parseKindList(list string) []types.ModuleKind {
	var kinds []types.ModuleKind
	for _, part := range strings.Split(list, ",") {
		if p := strings.TrimSpace(part); p != "" {
			kinds = append(kinds, types.ModuleKind(p))
		}
	}
	return kinds
}

func (w *workflowContext) modulesAreGenerated(list string) error {
	for _, k := range parseKindList(list) {
		if _, err := w.store.SetState(context.Background(), w.spec, k, types.StatePendingReview, ""); err != nil {
			return err
		}
	}
	return nil
}

func (w *workflowContext) everyModuleIsApprovedBy(actor string) error {
	md, err := w.store.Load(w.spec)
	if err != nil {
		return err
	}
	for _, k := range md.Kinds() {
		if _, err := w.store.SetState(context.Background(), w.spec, k, types.StateApproved, actor); err != nil {
			return err
		}
	}
	return nil
}

func (w *workflowContext) moduleIsApprovedBy(kind, actor string) error {
	_, w.lastErr = w.store.SetState(context.Background(), w.spec, types.ModuleKind(kind), types.StateApproved, actor)
	return nil
}

func (w *workflowContext) moduleIsRejected(kind string) error {
	_, err := w.store.SetState(context.Background(), w.spec, types.ModuleKind(kind), types.StateRejected, "")
	return err
}

func (w *workflowContext) moduleIsRegenerated(kind string) error {
	_, err := w.store.SetState(context.Background(), w.spec, types.ModuleKind(kind), types.StatePendingReview, "")
	return err
}

func (w *workflowContext) moduleIsDeleted(kind string) error {
	return w.store.DeleteModule(context.Background(), w.spec, types.ModuleKind(kind))
}

func (w *workflowContext) nModulesAreTracked(n int) error {
	md, err := w.store.Load(w.spec)
	if err != nil {
		return err
	}
	if len(md.Modules) != n {
		return fmt.Errorf("expected %d tracked modules, got %d", n, len(md.Modules))
	}
	return nil
}

func (w *workflowContext) everyModuleIs(state string) error {
	md, err := w.store.Load(w.spec)
	if err != nil {
		return err
	}
	for _, k := range md.Kinds() {
		if got := md.State(k); got != types.WorkflowState(state) {
			return fmt.Errorf("module %s is %s, want %s", k, got, state)
		}
	}
	return nil
}

func (w *workflowContext) moduleIs(kind, state string) error {
	got, err := w.store.GetState(w.spec, types.ModuleKind(kind))
	if err != nil {
		return err
	}
	if got != types.WorkflowState(state) {
		return fmt.Errorf("module %s is %s, want %s", kind, got, state)
	}
	return nil
}

func (w *workflowContext) moduleWasApprovedBy(kind, actor string) error {
	md, err := w.store.Load(w.spec)
	if err != nil {
		return err
	}
	entry := md.Modules[types.ModuleKind(kind)]
	if entry.ApprovedBy != actor || entry.ApprovedAt == nil {
		return fmt.Errorf("module %s approved by %q at %v, want %q", kind, entry.ApprovedBy, entry.ApprovedAt, actor)
	}
	return nil
}

func (w *workflowContext) theSpecCanProgress() error {
	ok, err := w.store.CanProgress(w.spec)
	if err != nil {
		return err
	}
	if !ok {
		return errExpectedProgress
	}
	return nil
}

func (w *workflowContext) theSpecCannotProgress() error {
	ok, err := w.store.CanProgress(w.spec)
	if err != nil {
		return err
	}
	if ok {
		return errUnexpectedProgress
	}
	return nil
}

func (w *workflowContext) theLastOperationFailsWithAnInvalidTransition() error {
	if !errors.Is(w.lastErr, ErrInvalidTransition) {
		return fmt.Errorf("%w: got %v", errExpectedFailure, w.lastErr)
	}
	return nil
}

func initializeWorkflowScenario(ctx *godog.ScenarioContext) {
	w := &workflowContext{}

	ctx.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		if w.root != "" {
			_ = os.RemoveAll(w.root)
		}
		return ctx, err
	})

	ctx.Step(`^a spec "([^"]*)" with no metadata$`, w.aSpecWithNoMetadata)
	ctx.Step(`^modules "([^"]*)" are generated$`, w.modulesAreGenerated)
	ctx.Step(`^every module is approved by "([^"]*)"$`, w.everyModuleIsApprovedBy)
	ctx.Step(`^module "([^"]*)" is approved by "([^"]*)"$`, w.moduleIsApprovedBy)
	ctx.Step(`^module "([^"]*)" is rejected$`, w.moduleIsRejected)
	ctx.Step(`^module "([^"]*)" is regenerated$`, w.moduleIsRegenerated)
	ctx.Step(`^module "([^"]*)" is deleted$`, w.moduleIsDeleted)
	ctx.Step(`^(\d+) modules are tracked$`, w.nModulesAreTracked)
	ctx.Step(`^every module is "([^"]*)"$`, w.everyModuleIs)
	ctx.Step(`^module "([^"]*)" is "([^"]*)"$`, w.moduleIs)
	ctx.Step(`^module "([^"]*)" was approved by "([^"]*)"$`, w.moduleWasApprovedBy)
	ctx.Step(`^the spec can progress to the next phase$`, w.theSpecCanProgress)
	ctx.Step(`^the spec cannot progress to the next phase$`, w.theSpecCannotProgress)
	ctx.Step(`^the last operation fails with an invalid transition$`, w.theLastOperationFailsWithAnInvalidTransition)
}

func TestWorkflowFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeWorkflowScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/workflow.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
