package arbiter

import (
	"github.com/BurntSushi/toml"
	"github.com/dedis/zkarena/game"
	"golang.org/x/xerrors"
)

// Execution backends.
const (
	BackendNative = "native"
	BackendWasm   = "wasm"
)

// Config is the TOML configuration of the arbiter.
type Config struct {
	// Agents names the agent of each seat: first, leftmost, random or minimax.
	Agents   []string `toml:"agents"`
	MaxTurns int      `toml:"max_turns"`
	Backend  string   `toml:"backend"`
	// Depth is the search depth of minimax agents.
	Depth    int            `toml:"depth"`
	Programs ProgramsConfig `toml:"programs"`
	Store    string         `toml:"store"`
	Ledger   LedgerConfig   `toml:"ledger"`
}

// ProgramsConfig points to WASI binaries, used by the wasm backend.
type ProgramsConfig struct {
	Game   string   `toml:"game"`
	Agents []string `toml:"agents"`
}

// LedgerConfig locates the settlement contract. An empty URL disables
// settlement.
type LedgerConfig struct {
	URL      string `toml:"url"`
	Contract string `toml:"contract"`
	ChainID  int64  `toml:"chain_id"`
	KeyFile  string `toml:"key_file"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() *Config {
	c := &Config{}
	c.withDefaults()
	return c
}

// ParseConfig decodes a TOML document and fills in defaults.
func ParseConfig(data string) (*Config, error) {
	c := &Config{}
	if _, err := toml.Decode(data, c); err != nil {
		return nil, xerrors.Errorf("couldn't parse config: %v", err)
	}
	c.withDefaults()
	return c, c.validate()
}

// LoadConfig reads the TOML file at path.
func LoadConfig(path string) (*Config, error) {
	c := &Config{}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, xerrors.Errorf("couldn't read config %s: %v", path, err)
	}
	c.withDefaults()
	return c, c.validate()
}

func (c *Config) withDefaults() {
	if len(c.Agents) == 0 {
		c.Agents = []string{"random", "random"}
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = game.DefaultMaxTurns
	}
	if c.Backend == "" {
		c.Backend = BackendNative
	}
	if c.Depth <= 0 {
		c.Depth = 4
	}
}

func (c *Config) validate() error {
	if len(c.Agents) != game.Seats {
		return xerrors.Errorf("need %d agents, got %d", game.Seats, len(c.Agents))
	}
	for _, name := range c.Agents {
		if _, ok := agentRegistry[name]; !ok {
			return xerrors.Errorf("unknown agent %q", name)
		}
	}
	switch c.Backend {
	case BackendNative:
	case BackendWasm:
		if c.Programs.Game == "" || len(c.Programs.Agents) != game.Seats {
			return xerrors.New("the wasm backend needs a game binary and one binary per seat")
		}
	default:
		return xerrors.Errorf("unknown backend %q", c.Backend)
	}
	if c.Ledger.URL != "" {
		if c.Ledger.Contract == "" || c.Ledger.KeyFile == "" {
			return xerrors.New("ledger needs a contract address and a key file")
		}
		if c.Ledger.ChainID <= 0 {
			return xerrors.Errorf("invalid chain id %d", c.Ledger.ChainID)
		}
	}
	return nil
}
