package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nsure-ai/inquest/pkg/config"
	"github.com/nsure-ai/inquest/pkg/health"
)

// Deployer performs the actual rollout of a single service. Implementations
// wrap whatever the platform uses (container orchestrator, systemd, scripts).
type Deployer interface {
	Deploy(ctx context.Context, svc config.ServiceConfig, environment string) error
	Rollback(ctx context.Context, svc config.ServiceConfig, environment string) error
}

// Coordinator executes a phased deployment: plan by dependency layering,
// deploy each phase in parallel, gate on health, roll back on failure.
// State is journaled to <state_dir>/<deployment_id>.json.
type Coordinator struct {
	cfg      config.DeployConfig
	deployer Deployer
	probe    *health.Probe
	logger   *slog.Logger

	mu    sync.Mutex
	state *DeploymentState
}

// NewCoordinator builds a coordinator. probe may be nil when no service
// declares a health URL.
func NewCoordinator(cfg config.DeployConfig, deployer Deployer, probe *health.Probe) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		deployer: deployer,
		probe:    probe,
		logger:   slog.With("component", "deploy_coordinator", "environment", cfg.Environment),
	}
}

// Run executes the deployment to a terminal status. A non-nil error always
// comes with a journaled terminal state, except for a dependency cycle,
// which refuses to start.
func (c *Coordinator) Run(ctx context.Context) (*DeploymentState, error) {
	phases, err := Plan(c.cfg.Services)
	if err != nil {
		c.logger.Error("Deployment refused", "error", err)
		return nil, err
	}

	deploymentID := uuid.NewString()
	c.state = NewDeploymentState(deploymentID, c.cfg.Environment, phases)
	c.state.Status = DeploymentInProgress
	c.log("info", fmt.Sprintf("deployment started: %d phases", len(phases)), "", 0)
	c.journal(true)

	c.logger.Info("Deployment started", "deployment_id", deploymentID, "phases", len(phases))

	for i, phase := range phases {
		if err := c.runPhase(ctx, i, phase); err != nil {
			return c.fail(ctx, fmt.Sprintf("phase %d: %v", i, err))
		}
	}

	if err := c.finalHealth(ctx); err != nil {
		return c.fail(ctx, fmt.Sprintf("final health: %v", err))
	}

	c.mu.Lock()
	c.state.Status = DeploymentSucceeded
	c.state.EndTime = timeNow()
	c.mu.Unlock()
	c.log("info", "deployment completed", "", 0)
	c.journal(true)
	c.logger.Info("Deployment completed", "deployment_id", deploymentID)
	return c.snapshot(), nil
}

// runPhase deploys every service of the phase concurrently, then gates on
// each service's readiness endpoint.
func (c *Coordinator) runPhase(ctx context.Context, index int, phase []string) error {
	c.log("info", "phase started", "", index)
	c.logger.Info("Phase started", "phase", index, "services", phase)

	phaseCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.PhaseTimeout > 0 {
		phaseCtx, cancel = context.WithTimeout(ctx, c.cfg.PhaseTimeout)
		defer cancel()
	}

	errs := make([]error, len(phase))
	var wg sync.WaitGroup
	for i, name := range phase {
		svc, ok := c.cfg.Service(name)
		if !ok {
			return fmt.Errorf("unknown service %s in plan", name)
		}
		c.setServiceStatus(name, ServiceInProgress)

		wg.Add(1)
		go func(i int, svc config.ServiceConfig) {
			defer wg.Done()
			errs[i] = c.deployer.Deploy(phaseCtx, svc, c.cfg.Environment)
		}(i, svc)
	}
	wg.Wait()

	// Record every outcome before failing the phase: siblings that deployed
	// while another service failed must be marked deployed so rollback sees
	// them.
	var phaseErr error
	for i, name := range phase {
		if errs[i] != nil {
			c.setServiceStatus(name, ServiceFailed)
			c.log("error", errs[i].Error(), name, index)
			if phaseErr == nil {
				phaseErr = fmt.Errorf("service %s: %w", name, errs[i])
			}
			continue
		}
		c.setServiceStatus(name, ServiceSucceeded)
		c.log("info", "service deployed", name, index)
	}
	if phaseErr != nil {
		return phaseErr
	}

	for _, name := range phase {
		svc, _ := c.cfg.Service(name)
		if svc.HealthURL == "" || c.probe == nil {
			continue
		}
		err := c.probe.WaitHealthy(phaseCtx, svc.HealthURL, c.cfg.Health.Retries, c.cfg.Health.Interval)
		if err != nil {
			c.setServiceStatus(name, ServiceFailed)
			c.log("error", err.Error(), name, index)
			return fmt.Errorf("health gate for %s: %w", name, err)
		}
		c.log("info", "service healthy", name, index)
	}

	c.log("info", "phase completed", "", index)
	return nil
}

// finalHealth requires every probed service to report healthy after the last
// phase.
func (c *Coordinator) finalHealth(ctx context.Context) error {
	if c.probe == nil {
		return nil
	}
	for _, svc := range c.cfg.Services {
		if svc.HealthURL == "" {
			continue
		}
		if status := c.probe.Check(ctx, svc.HealthURL); status != health.StatusHealthy {
			return fmt.Errorf("service %s reports %s", svc.Name, status)
		}
	}
	return nil
}

// fail marks the deployment failed, journals the failed state, then rolls
// back. The failed-state write precedes rollback so a crash mid-rollback
// still leaves an accurate terminal record.
func (c *Coordinator) fail(ctx context.Context, reason string) (*DeploymentState, error) {
	c.logger.Error("Deployment failed", "reason", reason)

	c.mu.Lock()
	c.state.Status = DeploymentFailed
	c.state.FailureReason = reason
	c.mu.Unlock()
	c.log("error", reason, "", 0)
	c.journal(true)

	c.rollback(ctx)

	c.mu.Lock()
	c.state.Status = DeploymentRolledBack
	c.state.EndTime = timeNow()
	c.mu.Unlock()
	c.log("info", "rollback completed", "", 0)
	c.journal(true)

	return c.snapshot(), fmt.Errorf("deployment failed: %s", reason)
}

// rollback reverts deployed services in reverse phase order.
func (c *Coordinator) rollback(ctx context.Context) {
	snap := c.snapshot()
	for i := len(snap.Phases) - 1; i >= 0; i-- {
		for _, name := range snap.Phases[i] {
			if snap.Services[name] != ServiceSucceeded {
				continue
			}
			svc, ok := c.cfg.Service(name)
			if !ok {
				continue
			}
			if err := c.deployer.Rollback(ctx, svc, c.cfg.Environment); err != nil {
				c.logger.Error("Rollback failed", "service", name, "error", err)
				c.log("error", "rollback failed: "+err.Error(), name, i)
				continue
			}
			c.setServiceStatus(name, ServiceRolledBack)
			c.log("info", "service rolled back", name, i)
		}
	}
}

func (c *Coordinator) setServiceStatus(name string, status ServiceStatus) {
	c.mu.Lock()
	c.state.Services[name] = status
	c.mu.Unlock()
}

// log appends an entry and journals periodically (every JournalEvery
// entries). Terminal transitions call journal(true) directly.
func (c *Coordinator) log(level, message, service string, phase int) {
	c.mu.Lock()
	count := c.state.Append(level, message, service, phase)
	c.mu.Unlock()

	if c.cfg.JournalEvery > 0 && count%c.cfg.JournalEvery == 0 {
		c.journal(false)
	}
}

// journal writes the state document. terminal marks the mandatory writes;
// periodic failures are logged and tolerated.
func (c *Coordinator) journal(terminal bool) {
	snap := c.snapshot()
	if err := snap.Save(c.cfg.StateDir); err != nil {
		if terminal {
			c.logger.Error("Terminal state write failed", "error", err)
		} else {
			c.logger.Warn("Periodic state write failed", "error", err)
		}
	}
}

func timeNow() time.Time { return time.Now().UTC() }

func (c *Coordinator) snapshot() *DeploymentState {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := *c.state
	out.Services = make(map[string]ServiceStatus, len(c.state.Services))
	for k, v := range c.state.Services {
		out.Services[k] = v
	}
	out.Log = append([]LogEntry(nil), c.state.Log...)
	out.Phases = append([][]string(nil), c.state.Phases...)
	return &out
}
