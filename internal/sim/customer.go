package sim

// Customer identifies a job's requester and their gold-tier status. The
// gold weight scalar is inherited from the scenario-wide GoldWeight
// parameter so policies don't need to thread it through separately.
type Customer struct {
	Identifier string
	IsGold     bool
	GoldWeight float64
}

func (c *Customer) String() string { return c.Identifier }
