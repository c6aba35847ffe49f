package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Brottuetchen/Quartalsreport/bonus"
	"github.com/Brottuetchen/Quartalsreport/generic"
	"github.com/Brottuetchen/Quartalsreport/report"
)

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Zeiten Q4.xml", "Zeiten_Q4.xml"},
		{`C:\Users\anna\budget.csv`, "budget.csv"},
		{"../../etc/passwd", "passwd"},
		{"Übersicht.csv", "_bersicht.csv"},
		{"", "fallback"},
		{"/", "fallback"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, report.SafeFileName(tt.in, "fallback"), tt.in)
	}
}

func TestRun_FileName(t *testing.T) {
	run := report.Run{
		BookingName: "zeiten.xml",
		Dataset: bonus.Dataset{
			ReportType: generic.ReportQuarterly,
			Period:     generic.Period{Start: generic.MustDate("2025-10-01"), End: generic.MustDate("2025-12-31")},
		},
	}
	assert.Equal(t, "zeiten_Q4-2025.json", run.FileName())

	run.BookingName = ""
	run.Dataset.ReportType = generic.ReportCustomPeriod
	run.Dataset.Period.End = generic.MustDate("2025-11-15")
	assert.Equal(t, "Report_20251001-20251115.json", run.FileName())
}
