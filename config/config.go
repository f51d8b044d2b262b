package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"seats/solver"
)

type Seating struct {
	Students    []string
	Friends     [][2]string
	Flagged     [][2]string
	Rows        int
	Cols        int
	MaxAttempts int
	Workers     int
	// Seed is used only when HasSeed is set; otherwise the generator is
	// seeded from the clock.
	Seed    int64
	HasSeed bool
}

type Server struct {
	Addr         string
	PGConn       string
	ClientID     string
	ClientSecret string
	Admins       []string
	Workers      int
}

var DefaultSeating = Seating{
	Students: []string{"Angela", "Bobby", "Char", "Dane", "Eve", "Frank", "Grace", "Heidi", "Ivan", "Judy"},
	Friends: [][2]string{
		{"Angela", "Bobby"},
		{"Char", "Dane"},
		{"Eve", "Frank"},
	},
	Flagged: [][2]string{
		{"Grace", "Heidi"},
		{"Ivan", "Judy"},
	},
	Rows:        3,
	Cols:        4,
	MaxAttempts: solver.DefaultMaxAttempts,
	Workers:     1,
}

func setSeatingDefaults(v *viper.Viper) {
	v.SetDefault("students", DefaultSeating.Students)
	v.SetDefault("friends", DefaultSeating.Friends)
	v.SetDefault("flagged", DefaultSeating.Flagged)
	v.SetDefault("rows", DefaultSeating.Rows)
	v.SetDefault("cols", DefaultSeating.Cols)
	v.SetDefault("maxattempts", DefaultSeating.MaxAttempts)
	v.SetDefault("workers", DefaultSeating.Workers)
}

// ReadSeating loads a seating config from path (any format viper reads).
// An empty path yields DefaultSeating. Keys missing from the file keep
// their defaults.
func ReadSeating(path string) (Seating, error) {
	v := viper.New()
	setSeatingDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Seating{}, err
		}
	}

	c := Seating{
		Students:    v.GetStringSlice("students"),
		Rows:        v.GetInt("rows"),
		Cols:        v.GetInt("cols"),
		MaxAttempts: v.GetInt("maxattempts"),
		Workers:     v.GetInt("workers"),
		HasSeed:     v.IsSet("seed"),
		Seed:        v.GetInt64("seed"),
	}
	var err error
	if c.Friends, err = readPairs(v, "friends"); err != nil {
		return Seating{}, err
	}
	if c.Flagged, err = readPairs(v, "flagged"); err != nil {
		return Seating{}, err
	}
	if c.MaxAttempts < 0 {
		return Seating{}, fmt.Errorf("%w: maxattempts must not be negative", solver.ErrInvalidConfiguration)
	}
	return c, nil
}

func readPairs(v *viper.Viper, key string) ([][2]string, error) {
	switch raw := v.Get(key).(type) {
	case [][2]string:
		return raw, nil
	case []any:
		pairs := make([][2]string, 0, len(raw))
		for i, p := range raw {
			items, ok := p.([]any)
			if !ok || len(items) != 2 {
				return nil, fmt.Errorf("%w: %s[%d] must be a list of two names", solver.ErrInvalidConfiguration, key, i)
			}
			pairs = append(pairs, [2]string{fmt.Sprint(items[0]), fmt.Sprint(items[1])})
		}
		return pairs, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of pairs", solver.ErrInvalidConfiguration, key)
	}
}

func (c Seating) Input() solver.Input {
	return solver.Input{
		Students: c.Students,
		Friends:  toPairs(c.Friends),
		Flagged:  toPairs(c.Flagged),
		Rows:     c.Rows,
		Cols:     c.Cols,
	}
}

func (c Seating) Options() []solver.Option {
	if c.HasSeed {
		return []solver.Option{solver.WithSeed(c.Seed)}
	}
	return nil
}

func toPairs(ps [][2]string) []solver.Pair {
	out := make([]solver.Pair, len(ps))
	for i, p := range ps {
		out[i] = solver.Pair{A: p[0], B: p[1]}
	}
	return out
}

// ReadServer reads the service settings from the environment.
func ReadServer() (Server, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("ADDR", ":8080")
	v.SetDefault("WORKERS", 4)

	for _, key := range []string{"PGCONN", "CLIENT_ID", "CLIENT_SECRET", "ADMINS"} {
		if v.GetString(key) == "" {
			return Server{}, fmt.Errorf("%s environment variable is required", key)
		}
	}

	var admins []string
	for _, a := range strings.Split(v.GetString("ADMINS"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			admins = append(admins, a)
		}
	}
	return Server{
		Addr:         v.GetString("ADDR"),
		PGConn:       v.GetString("PGCONN"),
		ClientID:     v.GetString("CLIENT_ID"),
		ClientSecret: v.GetString("CLIENT_SECRET"),
		Admins:       admins,
		Workers:      v.GetInt("WORKERS"),
	}, nil
}
