package infra

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/opsway/deploypipe/internal/model"
)

type call struct {
	name string
	args []string
}

func fakeTerraform(exitCode int, calls *[]call) *Terraform {
	tf := New("/work/infra", io.Discard, io.Discard, log.NewNopLogger())
	tf.run = func(ctx context.Context, dir string, stdout, stderr io.Writer, name string, args ...string) (int, error) {
		*calls = append(*calls, call{name: name, args: args})
		return exitCode, nil
	}
	return tf
}

func TestPlanClassifiesDetailedExitCode(t *testing.T) {
	cases := []struct {
		exit    int
		want    model.PlanOutcome
		wantErr bool
	}{
		{exit: 0, want: model.PlanNoChanges},
		{exit: 2, want: model.PlanChangesPending},
		{exit: 1, want: model.PlanError, wantErr: true},
		{exit: 3, want: model.PlanError, wantErr: true},
	}

	for _, tc := range cases {
		var calls []call
		tf := fakeTerraform(tc.exit, &calls)

		outcome, err := tf.Plan(context.Background(), "tfplan.bin", false)
		if outcome != tc.want {
			t.Errorf("exit %d: outcome = %s, want %s", tc.exit, outcome, tc.want)
		}
		if tc.wantErr && err == nil {
			t.Errorf("exit %d: expected error", tc.exit)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("exit %d: unexpected error: %v", tc.exit, err)
		}
	}
}

func TestPlanArgs(t *testing.T) {
	var calls []call
	tf := fakeTerraform(2, &calls)

	if _, err := tf.Plan(context.Background(), "out.bin", true); err != nil {
		t.Fatal(err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(calls))
	}
	got := calls[0]
	if got.name != "terraform" {
		t.Errorf("binary = %s", got.name)
	}

	want := []string{"plan", "-input=false", "-detailed-exitcode", "-out", "out.bin", "-destroy"}
	if len(got.args) != len(want) {
		t.Fatalf("args = %v, want %v", got.args, want)
	}
	for i := range want {
		if got.args[i] != want[i] {
			t.Errorf("args[%d] = %s, want %s", i, got.args[i], want[i])
		}
	}
}

func TestApplyAndDestroyPropagateFailure(t *testing.T) {
	var calls []call
	tf := fakeTerraform(1, &calls)

	if err := tf.Apply(context.Background(), "tfplan.bin"); err == nil {
		t.Error("expected apply failure on exit 1")
	}
	if err := tf.Destroy(context.Background()); err == nil {
		t.Error("expected destroy failure on exit 1")
	}
	if err := tf.Init(context.Background()); err == nil {
		t.Error("expected init failure on exit 1")
	}
}

func TestApplySucceeds(t *testing.T) {
	var calls []call
	tf := fakeTerraform(0, &calls)
	var buf bytes.Buffer
	tf.Stdout = &buf

	if err := tf.Apply(context.Background(), "tfplan.bin"); err != nil {
		t.Fatal(err)
	}
	if calls[0].args[len(calls[0].args)-1] != "tfplan.bin" {
		t.Errorf("apply must consume the plan artifact, args = %v", calls[0].args)
	}
}
