package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/rs/zerolog"

	"mcpchat/config"
	"mcpchat/model"
)

// Gateway owns one session per connected backend, in configuration order.
type Gateway struct {
	mu       sync.RWMutex
	sessions []namedSession
	sampler  *SamplingBridge
	log      zerolog.Logger
}

// NewGateway creates an empty gateway. sampler may be nil, in which case
// backends are not offered the sampling capability.
func NewGateway(sampler *SamplingBridge) *Gateway {
	return &Gateway{
		sampler: sampler,
		log:     config.Component("mcp"),
	}
}

// Sampler returns the sampling bridge shared by all sessions.
func (g *Gateway) Sampler() *SamplingBridge {
	return g.sampler
}

// DrainSamplingUsage returns the usage recorded by sampling calls since the
// last drain.
func (g *Gateway) DrainSamplingUsage() []model.Usage {
	if g.sampler == nil {
		return nil
	}
	return g.sampler.DrainUsage()
}

func (g *Gateway) samplingHandler() client.SamplingHandler {
	if g.sampler == nil {
		return nil
	}
	return g.sampler
}

// Connect launches every configured backend independently. A backend that
// fails to start is logged and left out; the returned error joins those
// failures and is informational. ctx must outlive the sessions: the stdio
// transport keeps it for inbound sampling requests.
func (g *Gateway) Connect(ctx context.Context, servers []config.ServerConfig) (int, error) {
	var errs []error
	connected := 0

	for _, server := range servers {
		session, err := launchStdio(ctx, server, g.samplingHandler(), g.log)
		if err != nil {
			g.log.Warn().Err(err).Str("server", server.Name).Msg("[MCP] Failed to connect backend")
			errs = append(errs, fmt.Errorf("%s: %w", server.Name, err))
			continue
		}
		g.Attach(server.Name, session)
		connected++
		g.log.Info().Str("server", server.Name).Msg("[MCP] Connected backend")
	}

	return connected, errors.Join(errs...)
}

// AttachClient starts and initializes an already constructed client, for
// example an in-process one, and adds it as backend name.
func (g *Gateway) AttachClient(ctx context.Context, name string, c *client.Client) error {
	session := &clientSession{name: name, client: c, log: g.log}
	if err := session.open(ctx); err != nil {
		return fmt.Errorf("failed to attach %s: %w", name, err)
	}
	g.Attach(name, session)
	return nil
}

// Attach adds a live session after the existing ones.
func (g *Gateway) Attach(name string, session Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, namedSession{name: name, session: session})
}

// Servers lists backend names in configuration order.
func (g *Gateway) Servers() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, len(g.sessions))
	for i, s := range g.sessions {
		names[i] = s.name
	}
	return names
}

func (g *Gateway) snapshot() []namedSession {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]namedSession(nil), g.sessions...)
}

func (g *Gateway) session(name string) (Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, s := range g.sessions {
		if s.name == name {
			return s.session, true
		}
	}
	return nil, false
}

// Close releases every session in parallel, even when some fail, and returns
// the joined errors.
func (g *Gateway) Close() error {
	g.mu.Lock()
	sessions := g.sessions
	g.sessions = nil
	g.mu.Unlock()

	g.log.Debug().Int("sessions", len(sessions)).Msg("[MCP] Shutdown: Starting parallel shutdown")

	var wg sync.WaitGroup
	errChan := make(chan error, len(sessions))

	for _, s := range sessions {
		wg.Add(1)
		go func(s namedSession) {
			defer wg.Done()
			if err := s.session.Close(); err != nil {
				g.log.Debug().Err(err).Str("server", s.name).Msg("[MCP] Shutdown: Error stopping backend")
				errChan <- err
			}
		}(s)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	g.log.Debug().Msg("[MCP] Shutdown: All backends stopped")
	return errors.Join(errs...)
}
