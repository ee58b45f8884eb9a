// Package hooks runs the pre-servicing, post-provision, and post-configure
// scripts named in a Host Configuration, and drives health-check probes
// after a boot into a newly-finalized OS (spec.md §4.8a).
package hooks

import (
	"github.com/phayes/permbits"
	"github.com/rancher/yip/pkg/executor"
	"github.com/rancher/yip/pkg/schema"
	"github.com/twpayne/go-vfs/v4"

	"github.com/microsoft/trident/internal/types"
)

// Stage is a tagged variant naming which point in the lifecycle a script
// list runs at.
type Stage string

const (
	StagePreServicing  Stage = "pre-servicing"
	StagePostProvision Stage = "post-provision"
	StagePostConfigure Stage = "post-configure"
)

// Runner executes a Host Configuration's script lists as yip stages against
// a target root: yip's job — run an ordered list of steps against
// TARGET_ROOT — maps directly onto the pre-servicing/post-provision/
// post-configure hook model.
type Runner struct {
	Log types.Logger
}

// Run chmod's every script executable, then runs them as a single yip stage
// named after stage, with TARGET_ROOT set for the scripts' own use.
func (r *Runner) Run(stage Stage, scripts []string, targetRoot string) error {
	if len(scripts) == 0 {
		return nil
	}
	for _, s := range scripts {
		if err := markExecutable(s); err != nil {
			return err
		}
	}

	yipStages := make([]schema.Stage, 0, len(scripts))
	for _, s := range scripts {
		yipStages = append(yipStages, schema.Stage{
			Name:    s,
			Commands: []string{s},
			Environment: map[string]string{"TARGET_ROOT": targetRoot},
		})
	}
	cfg := schema.YipConfig{
		Name:   string(stage),
		Stages: map[string][]schema.Stage{string(stage): yipStages},
	}

	exec := executor.NewExecutor(executor.WithLogger(r.Log))
	if err := exec.Run(string(stage), vfs.OSFS, nil, cfg); err != nil {
		return types.NewError(types.KindHook, "hooks", err)
	}
	return nil
}

func markExecutable(path string) error {
	perms, err := permbits.Stat(path)
	if err != nil {
		return types.NewError(types.KindHook, "hooks", err)
	}
	perms.SetUserExecute(true)
	if err := permbits.Chmod(path, perms); err != nil {
		return types.NewError(types.KindHook, "hooks", err)
	}
	return nil
}
