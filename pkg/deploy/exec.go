package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/nsure-ai/inquest/pkg/config"
)

// ExecDeployer rolls services out by running their configured commands.
type ExecDeployer struct {
	logger *slog.Logger
}

// NewExecDeployer builds the command-based deployer.
func NewExecDeployer() *ExecDeployer {
	return &ExecDeployer{logger: slog.With("component", "exec_deployer")}
}

// Deploy runs the service's deploy command with the environment tag exported
// as DEPLOY_ENVIRONMENT.
func (d *ExecDeployer) Deploy(ctx context.Context, svc config.ServiceConfig, environment string) error {
	return d.run(ctx, svc.Name, svc.DeployCmd, environment, "deploy")
}

// Rollback runs the service's rollback command. A service without one is
// skipped with a warning.
func (d *ExecDeployer) Rollback(ctx context.Context, svc config.ServiceConfig, environment string) error {
	if len(svc.RollbackCmd) == 0 {
		d.logger.Warn("No rollback command configured", "service", svc.Name)
		return nil
	}
	return d.run(ctx, svc.Name, svc.RollbackCmd, environment, "rollback")
}

func (d *ExecDeployer) run(ctx context.Context, service string, argv []string, environment, action string) error {
	if len(argv) == 0 {
		return fmt.Errorf("service %s has no %s command", service, action)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(),
		"DEPLOY_ENVIRONMENT="+environment,
		"DEPLOY_SERVICE="+service)

	out, err := cmd.CombinedOutput()
	if err != nil {
		d.logger.Error("Command failed",
			"service", service, "action", action, "error", err, "output", string(out))
		return fmt.Errorf("%s %s: %w", action, service, err)
	}
	d.logger.Info("Command completed", "service", service, "action", action)
	return nil
}
