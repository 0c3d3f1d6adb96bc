package financial

// mergeFigures picks income, expenses and savings independently, in strict
// priority order: primary, then verifier, then statements. Values are never
// averaged.
func mergeFigures(primary *PrimaryData, verifier *Affordability, statements *StatementData) (income, expenses, savings *Figure) {
	var (
		pIncome, pExpenses, pSavings *float64
		vIncome, vExpenses, vSavings *float64
		sIncome, sExpenses, sSavings *float64
	)
	if primary != nil {
		pIncome, pExpenses, pSavings = primary.Income, primary.Expenses, primary.Savings
	}
	if verifier != nil {
		vIncome, vExpenses = verifier.Income, verifier.Expenses
		if verifier.Income != nil && verifier.SavingsRatio != nil {
			v := *verifier.Income * *verifier.SavingsRatio
			vSavings = &v
		}
	}
	if statements != nil {
		sIncome, sExpenses = statements.RegularIncome, statements.RegularExpenses
		if sIncome != nil && sExpenses != nil {
			v := *sIncome - *sExpenses
			sSavings = &v
		}
	}

	income = firstFigure(
		candidate{pIncome, SourcePrimary},
		candidate{vIncome, SourceVerifier},
		candidate{sIncome, SourceStatements},
	)
	expenses = firstFigure(
		candidate{pExpenses, SourcePrimary},
		candidate{vExpenses, SourceVerifier},
		candidate{sExpenses, SourceStatements},
	)
	savings = firstFigure(
		candidate{pSavings, SourcePrimary},
		candidate{vSavings, SourceVerifier},
		candidate{sSavings, SourceStatements},
	)
	return income, expenses, savings
}

type candidate struct {
	value  *float64
	source Source
}

func firstFigure(cs ...candidate) *Figure {
	for _, c := range cs {
		if c.value != nil {
			return &Figure{Value: *c.value, Source: c.source}
		}
	}
	return nil
}

// recommendProduct selects premium strictly above the income threshold.
func recommendProduct(income *Figure, premiumAbove float64) string {
	if income != nil && income.Value > premiumAbove {
		return ProductPremium
	}
	return ProductEveryday
}
