package arbiter

import (
	"sort"

	"github.com/dedis/zkarena/connect4"
	"github.com/dedis/zkarena/game"
	"golang.org/x/xerrors"
)

var agentRegistry = map[string]func(depth int) game.Agent{
	"first":    func(int) game.Agent { return connect4.FirstColumn },
	"leftmost": func(int) game.Agent { return connect4.Leftmost },
	"random":   func(int) game.Agent { return connect4.Random },
	"minimax":  connect4.Minimax,
}

// AgentNames lists the registered agents.
func AgentNames() []string {
	names := make([]string, 0, len(agentRegistry))
	for name := range agentRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewAgent returns the agent registered under name.
func NewAgent(name string, depth int) (game.Agent, error) {
	fn, ok := agentRegistry[name]
	if !ok {
		return nil, xerrors.Errorf("unknown agent %q", name)
	}
	return fn(depth), nil
}
