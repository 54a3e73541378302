package service

import (
	"strings"

	liabilitydomain "github.com/smallbiznis/pspcore/internal/liability/domain"
	"github.com/smallbiznis/pspcore/internal/policy"
)

type tableKey struct {
	rail string
	code string
}

// defaultTable is the illustrative classification table from §4.5, seeded
// at startup and overridable per-deployment via the viper policy document.
var defaultTable = map[tableKey]liabilitydomain.Classification{
	{"ach", "r01"}: {ErrorOrigin: "client_funding", LiabilityParty: "client", RecoveryPath: "debit_client"},
	{"ach", "r02"}: {ErrorOrigin: "employee_data", LiabilityParty: "client", RecoveryPath: "client_remediation"},
	{"ach", "r03"}: {ErrorOrigin: "employee_data", LiabilityParty: "client", RecoveryPath: "client_remediation"},
	{"ach", "r06"}: {ErrorOrigin: "psp_process", LiabilityParty: "psp", RecoveryPath: "writeoff"},
	{"ach", "r10"}: {ErrorOrigin: "psp_process", LiabilityParty: "psp", RecoveryPath: "writeoff"},
	{"fednow", "generic_reject"}: {ErrorOrigin: "provider", LiabilityParty: "psp", RecoveryPath: "manual"},
}

func normKey(rail, code string) tableKey {
	return tableKey{rail: strings.ToLower(strings.TrimSpace(rail)), code: strings.ToLower(strings.TrimSpace(code))}
}

// buildTable layers the policy document's override rules on top of the
// illustrative default, last rule for a (rail, code) pair wins.
func buildTable(doc policy.Document) map[tableKey]liabilitydomain.Classification {
	table := make(map[tableKey]liabilitydomain.Classification, len(defaultTable))
	for k, v := range defaultTable {
		table[k] = v
	}
	for _, rule := range doc.Classification {
		table[normKey(rule.Rail, rule.Code)] = liabilitydomain.Classification{
			ErrorOrigin:    rule.ErrorOrigin,
			LiabilityParty: rule.LiabilityParty,
			RecoveryPath:   rule.RecoveryPath,
		}
	}
	return table
}
