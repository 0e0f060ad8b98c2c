package scoserv_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/scoserv"
	"github.com/aretw0/scoserv/internal/config"
	"github.com/aretw0/scoserv/pkg/attribute"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

// Example_modelRun schedules a run and executes it in the same process.
func Example_modelRun() {
	ctx := context.Background()
	root, _ := os.MkdirTemp("", "scoserv-example")
	defer os.RemoveAll(root)

	cfg := config.Default()
	cfg.Storage.Root = filepath.Join(root, "data")

	// Runs are executed as soon as they are scheduled.
	var svc *scoserv.Service
	inline := ports.DispatcherFunc(func(ctx context.Context, req domain.RunRequest) error {
		return svc.Engine().Handle(ctx, req)
	})
	model := ports.ModelFunc(func(ctx context.Context, in ports.ModelInput) (ports.ModelOutput, error) {
		out := filepath.Join(in.WorkDir, "prediction.mgz")
		return ports.ModelOutput{PrimaryFile: out}, os.WriteFile(out, []byte("volume"), 0o644)
	})

	svc, err := scoserv.New(ctx, cfg,
		scoserv.WithDispatcher(inline, "inline"),
		scoserv.WithModel("sco", attribute.ModelParameters(), model),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer svc.Close()

	// A subject is a directory tree; images are single files.
	subjectDir := filepath.Join(root, "subj01")
	_ = os.MkdirAll(filepath.Join(subjectDir, "mri"), 0o755)
	_ = os.WriteFile(filepath.Join(subjectDir, "mri", "T1.mgz"), []byte("t1"), 0o644)
	imagePath := filepath.Join(root, "stimulus.png")
	_ = os.WriteFile(imagePath, []byte("png"), 0o644)

	data := svc.Data()
	subject, _ := data.Subjects().Create(ctx, "Subject 1", subjectDir)
	image, _ := data.Images().Create(ctx, imagePath)
	group, _ := data.CreateImageGroup(ctx, "Group 1",
		[]domain.GroupImage{{ImageID: image.ID, Folder: "/", Name: image.Name()}}, nil)
	exp, _ := data.CreateExperiment(ctx, "Experiment 1", subject.ID, group.ID)

	run, err := data.CreateModelRun(ctx, exp.ID, "Run 1", "sco", nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	run, _ = data.ModelRuns().Get(ctx, run.ID, false)
	fmt.Println(run.State.Name())
	// Output: SUCCESS
}
