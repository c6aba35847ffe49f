package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brottuetchen/Quartalsreport/bonus"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestBlocks_Quarterly(t *testing.T) {
	// GIVEN: a single day in November with quarterly rounding
	out, _, err := execute(t, "blocks", "--type", "quarterly", "--start", "2025-11-12", "--end", "2025-11-12", "--grouping", "monthly")

	// THEN: the period is Q4 and split into three month blocks
	require.NoError(t, err)
	assert.Contains(t, out, "Period: 2025-10-01 .. 2025-12-31")
	assert.Contains(t, out, "Oktober 2025")
	assert.Contains(t, out, "November 2025")
	assert.Contains(t, out, "Dezember 2025")
}

func TestBlocks_InvalidGrouping(t *testing.T) {
	_, _, err := execute(t, "blocks", "--start", "2025-10-01", "--end", "2025-10-31", "--grouping", "daily")
	assert.Error(t, err)
}

func TestRun_WritesDataset(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "budget.csv")
	xmlPath := filepath.Join(dir, "zeiten.xml")
	scopePath := filepath.Join(dir, "scope.yaml")
	outPath := filepath.Join(dir, "out.json")

	require.NoError(t, os.WriteFile(csvPath, []byte("Projekte;Arbeitspaket;Sollstunden Budget;Iststunden\n1234 Neubau;Planung;100;50\n"), 0o600))
	require.NoError(t, os.WriteFile(xmlPath, []byte(`<report><row>
<cell name="staff_name">Anna</cell><cell name="project">1234 Neubau</cell>
<cell name="work_package_name">Planung</cell><cell name="date">06 Oct 2025</cell><cell name="number">8</cell>
</row></report>`), 0o600))
	require.NoError(t, os.WriteFile(scopePath, []byte("report_type: monthly\nstart_date: 2025-10-01\nend_date: 2025-10-31\n"), 0o600))

	// WHEN: the scope file sets the month and a flag overrides the grouping
	_, stderr, err := execute(t, "run", "--csv", csvPath, "--xml", xmlPath, "--scope", scopePath,
		"--grouping", "none", "--out", outPath)
	require.NoError(t, err)

	// THEN: the dataset is written and a summary goes to stderr
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var ds bonus.Dataset
	require.NoError(t, json.Unmarshal(data, &ds))
	assert.Equal(t, "none", string(ds.Grouping))
	require.Len(t, ds.Ledger, 1)
	assert.Equal(t, "8.00", ds.Ledger[0].BaseEligible.String())
	assert.Contains(t, stderr, "Entries: 1")
}
