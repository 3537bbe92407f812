// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pdiddy/design-engine/internal/apperr"
)

// Placeholders substituted into command provider arguments.
const (
	argOutput = "{output}"
	argSpec   = "{spec}"
	argModule = "{module}"
)

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args, env []string, stdin io.Reader, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, name string, args, env []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

var defaultExec executor = &osExecutor{}

// Command runs an external AI CLI with the prompt on stdin. The tool is
// expected to write the module file itself, at the path given by the
// {output} argument placeholder or the DESIGN_ENGINE_OUTPUT variable,
// unless CaptureStdout is set.
type Command struct {
	Bin           string
	Args          []string
	CaptureStdout bool

	exec executor
}

func (c *Command) Name() string { return "command:" + c.Bin }

func (c *Command) executor() executor {
	if c.exec != nil {
		return c.exec
	}
	return defaultExec
}

// Generate runs the command once. A non-zero exit is a non-success
// response carrying the tool's stderr.
func (c *Command) Generate(ctx context.Context, req Request) (Response, error) {
	ex := c.executor()
	if _, err := ex.LookPath(c.Bin); err != nil {
		return Response{}, apperr.Configuration("starting provider command", fmt.Errorf("%s not found on PATH: %w", c.Bin, err))
	}

	replacer := strings.NewReplacer(argOutput, req.OutputPath, argSpec, req.Spec, argModule, string(req.Kind))
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = replacer.Replace(a)
	}
	env := append(os.Environ(),
		"DESIGN_ENGINE_OUTPUT="+req.OutputPath,
		"DESIGN_ENGINE_SPEC="+req.Spec,
		"DESIGN_ENGINE_MODULE="+string(req.Kind),
	)

	var stdout, stderr bytes.Buffer
	err := ex.Run(ctx, c.Bin, args, env, strings.NewReader(req.Prompt), &stdout, &stderr)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Response{}, apperr.Wrap(fmt.Errorf("running %s: %w", c.Bin, ctxErr), "running provider command")
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Response{Message: fmt.Sprintf("%s failed: %s", c.Bin, msg)}, nil
	}

	if c.CaptureStdout {
		if strings.TrimSpace(stdout.String()) == "" {
			return Response{Message: fmt.Sprintf("%s produced no output", c.Bin)}, nil
		}
		if err := writeOutput(req.OutputPath, stdout.String()); err != nil {
			return Response{}, err
		}
	}
	return Response{Success: true, Content: stdout.String()}, nil
}
