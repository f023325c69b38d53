// Package profiles registers the built-in validation profiles.
package profiles

import "github.com/JonMunkholm/hdlcheck/internal/core"

func init() {
	registerWorker()
}

// workerActions are the standard HCM action codes for the worker object.
var workerActions = core.ActionClassification{
	Hire:           []string{"HIRE", "ADD_CWK", "ADD_PEN_WKR"},
	Rehire:         []string{"REHIRE", "REHIRE_CWK"},
	Termination:    []string{"TERMINATION", "RESIGNATION", "TERMINATE_PLACEMENT"},
	GlobalTransfer: []string{"GLB_TRANSFER"},
	AllowedEmployerChange: []string{
		"LEGAL_EMPLOYER_CHANGE",
	},
}

func registerWorker() {
	core.Register(core.Profile{
		Name:        "worker",
		Label:       "Worker",
		Description: "Worker, work relationship and assignment records keyed by person number",
		Rules: core.RuleSet{
			Columns: []string{
				"SourceSystemId",
				"PersonNumber",
				"ActionCode",
				"EffectiveStartDate",
				"EffectiveEndDate",
				"LegalEmployerName",
				"WorkerType",
				"DateOfBirth",
				"StartDate",
				"PrimaryFlag",
				"AssignmentNumber",
			},
			Required: []string{"PersonNumber", "ActionCode", "EffectiveStartDate"},
			Types: map[string]string{
				"EffectiveStartDate": "date",
				"EffectiveEndDate":   "date",
				"DateOfBirth":        "date",
				"StartDate":          "date",
				"PrimaryFlag":        "boolean",
			},
			Lookups: []core.LookupTable{
				{Attribute: "WorkerType", Values: []string{"E", "C", "N", "P"}},
			},
			Unique: [][]string{
				{"PersonNumber", "ActionCode", "EffectiveStartDate"},
			},
			Timeline: core.TimelineColumns{
				Identity:      "PersonNumber",
				Action:        "ActionCode",
				EffectiveDate: "EffectiveStartDate",
				LegalEmployer: "LegalEmployerName",
			},
			PartitionField:   "SourceSystemId",
			TerminationField: core.DefaultTerminationField,
			DateLayout:       core.DefaultDateLayout,
		},
		Actions: workerActions,
	})
}
