package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile(name string) Profile {
	return Profile{Name: name, Rules: testRules(), Actions: testActions()}
}

func resetRegistry(t *testing.T) {
	t.Helper()
	Clear()
	t.Cleanup(Clear)
}

func TestRegister(t *testing.T) {
	resetRegistry(t)

	Register(testProfile("Worker"))

	p, ok := Get(" WORKER ")
	require.True(t, ok)
	assert.Equal(t, "Worker", p.Label, "label defaults to the name")
	assert.Equal(t, 1, ProfileCount())

	assert.Panics(t, func() { Register(testProfile("worker")) }, "duplicate names panic")
	assert.Panics(t, func() { Register(Profile{Name: "broken", Rules: RuleSet{Unique: [][]string{{}}}}) })
}

func TestAll_SortedByName(t *testing.T) {
	resetRegistry(t)
	Register(testProfile("worker"))
	Register(testProfile("Assignment"))
	Register(testProfile("contract"))

	var names []string
	for _, p := range All() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Assignment", "contract", "worker"}, names)
}

func TestProfile_Validate(t *testing.T) {
	err := Profile{Rules: testRules(), Actions: testActions()}.Validate()
	assert.ErrorIs(t, err, ErrMalformedRuleSet)

	err = Profile{Name: "x", Rules: testRules()}.Validate()
	assert.ErrorIs(t, err, ErrMalformedRuleSet)
	assert.Contains(t, err.Error(), `profile "x"`)
}

const profilesYAML = `
profiles:
  - name: contractor
    label: Contingent worker
    rules:
      required: [PersonNumber, ActionCode]
      types:
        EffectiveStartDate: date
      unique:
        - [PersonNumber, ActionCode, EffectiveStartDate]
      lookups:
        - attribute: WorkerType
          values: [C]
      timeline:
        identity: PersonNumber
        action: ActionCode
        effectiveDate: EffectiveStartDate
        legalEmployer: LegalEmployerName
      partitionField: SourceSystemId
    actions:
      hire: [ADD_CWK]
      termination: [TERMINATE_PLACEMENT]
      globalTransfer: [GLB_TRANSFER]
`

func TestParseProfilesYAML(t *testing.T) {
	profiles, err := ParseProfilesYAML([]byte(profilesYAML))
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, "contractor", p.Name)
	assert.Equal(t, "Contingent worker", p.Label)
	assert.Equal(t, []string{"PersonNumber", "ActionCode"}, p.Rules.Required)
	assert.Equal(t, "date", p.Rules.Types["EffectiveStartDate"])
	assert.Equal(t, [][]string{{"PersonNumber", "ActionCode", "EffectiveStartDate"}}, p.Rules.Unique)
	assert.Equal(t, []string{"C"}, p.Rules.Lookups[0].Values)
	assert.Equal(t, "LegalEmployerName", p.Rules.Timeline.LegalEmployer)
	assert.Equal(t, "SourceSystemId", p.Rules.PartitionField)
	assert.Equal(t, []string{"ADD_CWK"}, p.Actions.Hire)
}

func TestParseProfilesYAML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"empty", "  \n", "document is empty"},
		{"not yaml", "profiles: [", "decode"},
		{"invalid profile", "profiles:\n  - name: bad\n    rules:\n      types: {A: money}\n", `unknown data type "money"`},
		{"duplicate", "profiles:\n  - name: a\n  - name: A\n", `duplicate profile "A"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfilesYAML([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadProfiles(t *testing.T) {
	resetRegistry(t)

	n, err := LoadProfiles("")
	require.NoError(t, err)
	assert.Zero(t, n)

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(profilesYAML), 0o600))

	n, err = LoadProfiles(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := Get("Contractor")
	assert.True(t, ok)

	_, err = LoadProfiles(path)
	assert.ErrorContains(t, err, "already registered")

	_, err = LoadProfiles(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "profiles: read")
}
