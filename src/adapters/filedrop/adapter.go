// Package filedrop talks to a terminal by writing one command file per
// order leg into the directory the terminal watches. It is write-only:
// nothing comes back, so read queries are unavailable.
package filedrop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-bridge/src/eventmodels"
	"github.com/jiaming2012/webhook-bridge/src/terminal"
)

const DefaultIncomingDir = "incoming"

type InstrumentLookup interface {
	LookupInstrument(ctx context.Context, symbol string) (eventmodels.Instrument, error)
}

type Config struct {
	TerminalID eventmodels.TerminalID

	// IncomingDir is relative to the resolved root.
	IncomingDir string

	// SkipIncomingCheck disables the existence check on Connect. The
	// directory must still exist when a command is written.
	SkipIncomingCheck bool

	// ProcessName is checked on Connect when non-empty.
	ProcessName string
}

type Adapter struct {
	cfg      Config
	resolver DirectoryResolver
	checker  terminal.ProcessChecker
	catalog  InstrumentLookup

	mu       sync.RWMutex
	incoming string
}

func New(cfg Config, resolver DirectoryResolver, checker terminal.ProcessChecker, catalog InstrumentLookup) *Adapter {
	if cfg.IncomingDir == "" {
		cfg.IncomingDir = DefaultIncomingDir
	}

	if checker == nil {
		checker = terminal.HostProcessChecker{}
	}

	return &Adapter{
		cfg:      cfg,
		resolver: resolver,
		checker:  checker,
		catalog:  catalog,
	}
}

func (a *Adapter) Mode() eventmodels.IntegrationMode {
	return eventmodels.FileDrop
}

func (a *Adapter) Connect(ctx context.Context) error {
	root, err := a.resolver.Resolve(ctx)
	if err != nil {
		return eventmodels.NewConnectivityError(a.cfg.TerminalID, fmt.Errorf("failed to resolve root directory: %w", err))
	}

	incoming := filepath.Join(root, a.cfg.IncomingDir)

	if !a.cfg.SkipIncomingCheck {
		info, err := os.Stat(incoming)
		if err != nil {
			return eventmodels.NewConnectivityError(a.cfg.TerminalID, fmt.Errorf("incoming directory %s: %w", incoming, err))
		}

		if !info.IsDir() {
			return eventmodels.NewConnectivityError(a.cfg.TerminalID, fmt.Errorf("incoming path %s is not a directory", incoming))
		}
	}

	if a.cfg.ProcessName != "" {
		running, err := a.checker.IsRunning(ctx, a.cfg.ProcessName)
		if err != nil {
			return eventmodels.NewConnectivityError(a.cfg.TerminalID, err)
		}

		if !running {
			return eventmodels.NewConnectivityError(a.cfg.TerminalID, fmt.Errorf("process %s is not running", a.cfg.ProcessName))
		}
	}

	a.mu.Lock()
	a.incoming = incoming
	a.mu.Unlock()

	log.Infof("file-drop commands for %s go to %s", a.cfg.TerminalID, incoming)
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.incoming = ""
	a.mu.Unlock()

	return nil
}

// IncomingDir returns the directory commands are written to, or "" before
// Connect.
func (a *Adapter) IncomingDir() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.incoming
}

// write stores line in a uniquely named oif<uuid>.txt file. The content is
// written under a temporary name and renamed so the terminal never reads a
// partial command.
func (a *Adapter) write(line string) (string, error) {
	dir := a.IncomingDir()
	if dir == "" {
		return "", eventmodels.ErrNotConnected
	}

	id := uuid.NewString()
	tmpPath := filepath.Join(dir, "."+id+".tmp")
	path := filepath.Join(dir, "oif"+id+".txt")

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("write: failed to create %s: %w", tmpPath, err)
	}

	if _, err := f.WriteString(line); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write: failed to write %s: %w", tmpPath, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("write: failed to close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("write: failed to rename to %s: %w", path, err)
	}

	return path, nil
}

func (a *Adapter) send(command string, role eventmodels.LegRole, line string) (*eventmodels.CommandResult, error) {
	path, err := a.write(line)
	if err != nil {
		return nil, &eventmodels.BrokerRejection{Command: command, Cause: err}
	}

	log.WithFields(log.Fields{
		"terminal": a.cfg.TerminalID,
		"command":  command,
		"file":     filepath.Base(path),
	}).Debug(line)

	return &eventmodels.CommandResult{
		Role:    role,
		Command: command,
		Path:    path,
	}, nil
}

func (a *Adapter) PlaceOrder(ctx context.Context, order eventmodels.OrderRequest) (*eventmodels.CommandResult, error) {
	line, err := EncodePlace(order)
	if err != nil {
		return nil, &eventmodels.BrokerRejection{Command: CommandPlace, Cause: err}
	}

	return a.send(CommandPlace, order.Role, line)
}

func (a *Adapter) Flatten(ctx context.Context, req eventmodels.FlattenRequest) (*eventmodels.CommandResult, error) {
	line, err := EncodeClosePosition(req)
	if err != nil {
		return nil, &eventmodels.BrokerRejection{Command: CommandClosePosition, Cause: err}
	}

	return a.send(CommandClosePosition, "", line)
}

func (a *Adapter) GetPositions(ctx context.Context, account string) ([]eventmodels.PositionSnapshot, error) {
	return nil, fmt.Errorf("GetPositions: %w", eventmodels.ErrCapabilityUnavailable)
}

func (a *Adapter) GetOrders(ctx context.Context, account string) ([]eventmodels.OrderSnapshot, error) {
	return nil, fmt.Errorf("GetOrders: %w", eventmodels.ErrCapabilityUnavailable)
}

func (a *Adapter) GetAccountInfo(ctx context.Context, account string) (*eventmodels.AccountSnapshot, error) {
	return nil, fmt.Errorf("GetAccountInfo: %w", eventmodels.ErrCapabilityUnavailable)
}

func (a *Adapter) LookupInstrument(ctx context.Context, symbol string) (eventmodels.Instrument, error) {
	if a.catalog == nil {
		return eventmodels.Instrument{}, fmt.Errorf("LookupInstrument: %s: %w", symbol, eventmodels.ErrInstrumentNotFound)
	}

	return a.catalog.LookupInstrument(ctx, symbol)
}
