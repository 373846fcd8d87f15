package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one scenario that failed to load, run or pass.
type ScenarioFailure struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Errors []string `json:"errors"`
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	slices.Sort(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario in paths. Scenarios are isolated,
// so they run concurrently; failures are reported in path order.
func RunSuite(ctx context.Context, paths []string) (*SuiteResult, error) {
	failures := make([]*ScenarioFailure, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			failures[i] = runOne(gctx, path)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &SuiteResult{Total: len(paths)}
	for _, f := range failures {
		if f == nil {
			result.Passed++
			continue
		}
		result.Failed++
		result.Failures = append(result.Failures, *f)
	}
	return result, nil
}

func runOne(ctx context.Context, path string) *ScenarioFailure {
	scenario, err := LoadScenario(path)
	if err != nil {
		return &ScenarioFailure{
			Path:   path,
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	res, err := RunContext(ctx, scenario)
	if err != nil {
		return &ScenarioFailure{
			Path:   path,
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("scenario execution failed: %v", err)},
		}
	}
	if !res.Pass {
		return &ScenarioFailure{Path: path, Name: scenario.Name, Errors: res.Errors}
	}
	return nil
}
