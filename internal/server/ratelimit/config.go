// Defines rate limit tiers.

package ratelimit

// Tier is a named limiter applied to a group of routes.
type Tier struct {
	Name    string
	Limiter *Limiter
}

// Config holds the limiter of each route group. A nil tier is unlimited.
type Config struct {
	Auth  *Tier // token requests
	Write *Tier // mutating commands
	Read  *Tier // read commands
}

// NewConfig creates tiers from per-minute rates. A rate of 0 disables the
// tier. The burst is a tenth of the rate, or the whole rate for small ones.
func NewConfig(authPerMin, writePerMin, readPerMin int) *Config {
	return &Config{
		Auth:  newTier("auth", authPerMin),
		Write: newTier("write", writePerMin),
		Read:  newTier("read", readPerMin),
	}
}

func newTier(name string, perMin int) *Tier {
	if perMin <= 0 {
		return nil
	}
	burst := perMin / 10
	if perMin <= 10 {
		burst = perMin
	}
	return &Tier{Name: name, Limiter: NewLimiter(perMin, burst)}
}

// Close stops all limiter cleanup goroutines.
func (c *Config) Close() {
	for _, t := range []*Tier{c.Auth, c.Write, c.Read} {
		if t != nil {
			t.Limiter.Close()
		}
	}
}
