package scenario

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snsim/snsim/internal/sim"
)

const sampleScenario = `<?xml version="1.0"?>
<SNSimScenario>
  <Parameters>
    <Seed>123</Seed>
    <GoldWeight>2.5</GoldWeight>
    <JobCount>4</JobCount>
  </Parameters>
  <ResourcePools>
    <ResourcePool>
      <Identifier>pool-a</Identifier>
      <Resources>
        <cpu>4</cpu>
        <mem>8</mem>
      </Resources>
    </ResourcePool>
  </ResourcePools>
  <Services>
    <Service>
      <Identifier>A</Identifier>
      <ResourcePool>pool-a</ResourcePool>
      <Resources>
        <cpu>1</cpu>
      </Resources>
      <Ticks>2</Ticks>
      <MaxAttempts>3</MaxAttempts>
      <Revenue>1</Revenue>
      <Penalty>1</Penalty>
    </Service>
    <Service>
      <Identifier>B</Identifier>
      <ResourcePool>pool-a</ResourcePool>
      <Resources>
        <mem>2</mem>
      </Resources>
      <Ticks>1</Ticks>
    </Service>
  </Services>
  <JobTemplates>
    <JobTemplate>
      <Identifier>job-1</Identifier>
      <Signature>(('A',),('B',))</Signature>
      <Revenue>10</Revenue>
      <Penalty>4</Penalty>
    </JobTemplate>
  </JobTemplates>
  <Customers>
    <Customer>
      <Identifier>cust-1</Identifier>
      <isGold>true</isGold>
    </Customer>
    <Customer>
      <Identifier>cust-2</Identifier>
      <isGold>false</isGold>
    </Customer>
  </Customers>
</SNSimScenario>`

func TestLoadReader_FullScenario(t *testing.T) {
	sc, err := LoadReader(strings.NewReader(sampleScenario), nil)
	require.NoError(t, err)

	assert.Len(t, sc.Pools, 1)
	assert.Len(t, sc.Services, 2)
	assert.Len(t, sc.Jobs, 1)
	assert.Len(t, sc.Customers, 2)
	assert.Equal(t, int64(123), sc.Seed)
	assert.Equal(t, 2.5, sc.GoldWeight)
	assert.Equal(t, 4, sc.JobCount)

	job := sc.Jobs["job-1"]
	require.NotNil(t, job)
	require.Len(t, job.Signature, 2)
	assert.Equal(t, sim.Stage{"A"}, job.Signature[0])
	assert.Equal(t, sim.Stage{"B"}, job.Signature[1])

	svcA := sc.Services["A"]
	require.NotNil(t, svcA)
	assert.Equal(t, 3, svcA.MaxAttempts)

	svcB := sc.Services["B"]
	require.NotNil(t, svcB)
	assert.Equal(t, 1, svcB.MaxAttempts, "MaxAttempts must default to 1 when absent")
	assert.Zero(t, svcB.Revenue)
	assert.Zero(t, svcB.Penalty)

	var gold, regular *sim.Customer
	for _, c := range sc.Customers {
		if c.Identifier == "cust-1" {
			gold = c
		} else {
			regular = c
		}
	}
	require.NotNil(t, gold)
	require.NotNil(t, regular)
	assert.True(t, gold.IsGold)
	assert.Equal(t, 2.5, gold.GoldWeight)
	assert.False(t, regular.IsGold)
}

func TestLoadReader_EngineWiresAndRuns(t *testing.T) {
	sc, err := LoadReader(strings.NewReader(sampleScenario), nil)
	require.NoError(t, err)

	engine := sc.Engine(sim.FCFSPolicy{}, nil)
	assert.Same(t, sc.Log, engine.Log, "Engine must reuse the scenario's logger")

	trace := engine.Start(20)
	assert.Len(t, trace, 20)
}

func TestLoadReader_DuplicatePoolIsSkipped(t *testing.T) {
	doc := `<SNSimScenario>
  <ResourcePools>
    <ResourcePool><Identifier>pool-a</Identifier><Resources><cpu>4</cpu></Resources></ResourcePool>
    <ResourcePool><Identifier>pool-a</Identifier><Resources><cpu>8</cpu></Resources></ResourcePool>
  </ResourcePools>
</SNSimScenario>`

	sc, err := LoadReader(strings.NewReader(doc), nil)
	require.NoError(t, err)
	require.Len(t, sc.Pools, 1)
	capacity, ok := sc.Pools["pool-a"].Capacity("cpu")
	require.True(t, ok)
	assert.Equal(t, 4.0, capacity, "the first definition must win, the duplicate must be skipped")
}

func TestLoadReader_ServiceWithUnknownPoolIsSkipped(t *testing.T) {
	doc := `<SNSimScenario>
  <Services>
    <Service>
      <Identifier>A</Identifier>
      <ResourcePool>missing</ResourcePool>
      <Resources><cpu>1</cpu></Resources>
      <Ticks>1</Ticks>
    </Service>
  </Services>
</SNSimScenario>`

	sc, err := LoadReader(strings.NewReader(doc), nil)
	require.NoError(t, err)
	assert.Empty(t, sc.Services)
}

func TestLoadReader_JobTemplateWithBadSignatureIsSkipped(t *testing.T) {
	doc := `<SNSimScenario>
  <ResourcePools>
    <ResourcePool><Identifier>pool-a</Identifier><Resources><cpu>4</cpu></Resources></ResourcePool>
  </ResourcePools>
  <Services>
    <Service>
      <Identifier>A</Identifier>
      <ResourcePool>pool-a</ResourcePool>
      <Resources><cpu>1</cpu></Resources>
      <Ticks>1</Ticks>
    </Service>
  </Services>
  <JobTemplates>
    <JobTemplate>
      <Identifier>bad-job</Identifier>
      <Signature>not-a-signature</Signature>
    </JobTemplate>
    <JobTemplate>
      <Identifier>good-job</Identifier>
      <Signature>(('A',),)</Signature>
    </JobTemplate>
  </JobTemplates>
</SNSimScenario>`

	sc, err := LoadReader(strings.NewReader(doc), nil)
	require.NoError(t, err)
	assert.Len(t, sc.Jobs, 1)
	_, ok := sc.Jobs["good-job"]
	assert.True(t, ok)
	_, ok = sc.Jobs["bad-job"]
	assert.False(t, ok)
}

func TestLoadReader_DefaultsWhenParametersAbsent(t *testing.T) {
	doc := `<SNSimScenario></SNSimScenario>`

	sc, err := LoadReader(strings.NewReader(doc), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sc.Seed)
	assert.Equal(t, 1.0, sc.GoldWeight)
	assert.Zero(t, sc.JobCount)
}

func TestLoadReader_NonNumericSeedIsHashedDeterministically(t *testing.T) {
	doc := `<SNSimScenario><Parameters><Seed>run-one</Seed></Parameters></SNSimScenario>`

	first, err := LoadReader(strings.NewReader(doc), nil)
	require.NoError(t, err)
	second, err := LoadReader(strings.NewReader(doc), nil)
	require.NoError(t, err)

	assert.Equal(t, first.Seed, second.Seed)
	assert.NotEqual(t, int64(1), first.Seed)
}

func TestLoadReader_DuplicateCustomerIsSkipped(t *testing.T) {
	doc := `<SNSimScenario>
  <Customers>
    <Customer><Identifier>cust-1</Identifier><isGold>true</isGold></Customer>
    <Customer><Identifier>cust-1</Identifier><isGold>false</isGold></Customer>
  </Customers>
</SNSimScenario>`

	sc, err := LoadReader(strings.NewReader(doc), nil)
	require.NoError(t, err)
	require.Len(t, sc.Customers, 1, "the first definition must win, the duplicate must be skipped")
	assert.True(t, sc.Customers[0].IsGold)
}

func TestLoadReader_MalformedXML(t *testing.T) {
	_, err := LoadReader(strings.NewReader("<not-closed>"), nil)
	require.Error(t, err)
}
