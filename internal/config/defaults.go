package config

// Default returns the built-in configuration. The standards catalog sums to
// 1.76 lbs per guest.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "brasa.db",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 5,
		},

		Standards: []StandardConfig{
			{Protein: "Picanha", Fraction: 0.39},
			{Protein: "Fraldinha/Flank Steak", Fraction: 0.24},
			{Protein: "Chicken Breast", Fraction: 0.14},
			{Protein: "Chicken Drumstick", Fraction: 0.13},
			{Protein: "Tri-Tip", Fraction: 0.12},
			{Protein: "Garlic Picanha", Fraction: 0.10},
			{Protein: "Filet Mignon", Fraction: 0.10},
			{Protein: "Lamb Picanha", Fraction: 0.10},
			{Protein: "Bone-in Ribeye", Fraction: 0.09},
			{Protein: "Beef Ribs", Fraction: 0.08},
			{Protein: "Lamb Chops", Fraction: 0.07},
			{Protein: "Pork Loin", Fraction: 0.06},
			{Protein: "Sausage", Fraction: 0.06},
			{Protein: "Pork Ribs", Fraction: 0.04},
			{Protein: "Pork Belly", Fraction: 0.04},
		},
		BaselineTotal:              1.76,
		DefaultTotalWeightPerGuest: 1.76,
		FinancialTargetPerGuest:    9.92,
		BriefingTolerance:          0.05,

		Costs: CostConfig{
			LookbackDays: 90,
			Default:      6.00,
			Fallback: map[string]float64{
				"picanha":               5.26,
				"garlic picanha":        5.26,
				"fraldinha/flank steak": 7.89,
				"filet mignon":          13.44,
				"beef ribs":             6.89,
				"bone-in ribeye":        9.19,
				"chicken breast":        1.86,
				"chicken drumstick":     0.99,
				"lamb chops":            11.99,
				"lamb picanha":          4.06,
				"pork loin":             2.30,
				"pork ribs":             2.80,
				"pork belly":            3.32,
				"sausage":               3.66,
				"tri-tip":               6.00,
				"leg of lamb":           4.00,
			},
		},

		UnitRules: map[string]UnitRuleConfig{
			"Picanha":               {Type: "flat", UnitName: "Skewers", UnitWeight: 3.5},
			"Garlic Picanha":        {Type: "flat", UnitName: "Skewers", UnitWeight: 2.4},
			"Lamb Picanha":          {Type: "flat", UnitName: "Skewers", UnitWeight: 1.5},
			"Fraldinha/Flank Steak": {Type: "flat", UnitName: "Skewers", UnitWeight: 2.5},
			"Tri-Tip":               {Type: "flat", UnitName: "Skewers", UnitWeight: 2.5},
			"Filet Mignon":          {Type: "flat", UnitName: "Skewers", UnitWeight: 2.0},
			"Bone-in Ribeye":        {Type: "flat", UnitName: "Piece/Whole", UnitWeight: 3.0},
			"Beef Ribs":             {Type: "flat", UnitName: "Ribs", UnitWeight: 4.0},
			"Pork Ribs":             {Type: "flat", UnitName: "Skewers", UnitWeight: 3.0},
			"Pork Loin":             {Type: "flat", UnitName: "Skewers", UnitWeight: 1.8},
			"Lamb Chops":            {Type: "flat", UnitName: "Skewers", UnitWeight: 1.6},
			"Sausage":               {Type: "flat", UnitName: "Skewers", UnitWeight: 2.4},
			"Chicken Drumstick":     {Type: "flat", UnitName: "Skewers", UnitWeight: 2.25},
			"Chicken Breast": {
				Type:             "skewer",
				UnitName:         "Skewers",
				PiecesPerSkewer:  9,
				PieceWeight:      0.125,
				Yield:            0.95,
				HighVolumeGuests: 400,
				HighVolumePieces: 10,
			},
		},

		Groups: []GroupConfig{
			{Key: "Picanha", Members: []string{"Picanha", "Garlic Picanha"}},
			{Key: "Lamb Chops", Members: []string{"Lamb Chops"}, DinnerOnly: true},
		},

		Schedule: map[string][]WindowConfig{
			"monday":    weekdayWindows("21:30"),
			"tuesday":   weekdayWindows("21:30"),
			"wednesday": weekdayWindows("21:30"),
			"thursday":  weekdayWindows("21:30"),
			"friday":    weekdayWindows("23:30"),
			"saturday":  {{Start: "11:00", End: "23:30", Shift: "any"}},
			"sunday":    {{Start: "11:00", End: "21:00", Shift: "any"}},
		},

		Compliance: ComplianceConfig{
			LunchQuota:            3,
			DinnerQuota:           3,
			WasteCriticalPercent:  5.0,
			WasteWarningPercent:   1.0,
			AnalysisForecastGuest: 150,
			Villains: []string{
				"Picanha", "Garlic Picanha", "Lamb Picanha", "Beef Ribs",
				"Lamb Chops", "Filet Mignon", "Fraldinha/Flank Steak",
			},
		},

		Forecast: ForecastConfig{Base: 120, Step: 25},
		Variance: VarianceConfig{TopN: 10},
	}
}

func weekdayWindows(dinnerEnd string) []WindowConfig {
	return []WindowConfig{
		{Start: "11:00", End: "14:00", Shift: "lunch"},
		{Start: "17:00", End: dinnerEnd, Shift: "dinner"},
	}
}
