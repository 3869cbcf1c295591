package models

import "github.com/shopspring/decimal"

// InvestmentCategory — категория инвестиционных продуктов.
type InvestmentCategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// InvestmentProduct — продукт для инвестирования (micro-node, mega-node и т.д.).
type InvestmentProduct struct {
	ID                       string              `json:"id"`
	Name                     string              `json:"name"`
	Slug                     string              `json:"slug"`
	InvestmentType           string              `json:"investment_type"`
	PricePerUnit             decimal.Decimal     `json:"price_per_unit"`
	MinimumInvestment        decimal.Decimal     `json:"minimum_investment"`
	ExpectedAnnualReturn     decimal.Decimal     `json:"expected_annual_return"`
	Status                   string              `json:"status"`
	Description              string              `json:"description,omitempty"`
	InvestmentDurationMonths int                 `json:"investment_duration_months,omitempty"`
	Features                 []string            `json:"features,omitempty"`
	TechnicalSpecs           map[string]any      `json:"technical_specs,omitempty"`
	Category                 *InvestmentCategory `json:"category,omitempty"`
}

// ProductPage — страница списка продуктов.
type ProductPage struct {
	Products   []InvestmentProduct `json:"products"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalPages int                 `json:"total_pages"`
}

// ProductFilter — параметры поиска продуктов. Нулевые значения не передаются.
type ProductFilter struct {
	Category       string
	InvestmentType string
	Status         string
	MinPrice       decimal.Decimal
	MaxPrice       decimal.Decimal
	Search         string
	Page           int
	PageSize       int
}

// YearlyReturn — доходность за год в прогнозе.
type YearlyReturn struct {
	Year       int             `json:"year"`
	Return     decimal.Decimal `json:"return"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// Projection — прогноз доходности для суммы инвестиций.
type Projection struct {
	InvestmentAmount decimal.Decimal `json:"investment_amount"`
	InvestmentType   string          `json:"investment_type"`
	DurationYears    int             `json:"duration_years"`
	YearlyReturns    []YearlyReturn  `json:"yearly_returns"`
	TotalReturn      decimal.Decimal `json:"total_return"`
	FinalValue       decimal.Decimal `json:"final_value"`
	ROIPercentage    decimal.Decimal `json:"roi_percentage"`
}

// InvestmentRequest — заявка на инвестицию.
type InvestmentRequest struct {
	ProductSlug   string          `json:"product_slug" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method,omitempty"`
}

// Investment — инвестиция пользователя в портфеле.
type Investment struct {
	ID             string            `json:"id"`
	Product        InvestmentProduct `json:"product"`
	Amount         decimal.Decimal   `json:"amount"`
	Units          decimal.Decimal   `json:"units"`
	Status         string            `json:"status"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
	ExpectedReturn decimal.Decimal   `json:"expected_return"`
	CurrentValue   decimal.Decimal   `json:"current_value"`
}

// PortfolioSummary — агрегаты по портфелю, считаются на клиенте для отображения.
type PortfolioSummary struct {
	Invested       decimal.Decimal `json:"invested"`
	CurrentValue   decimal.Decimal `json:"current_value"`
	ExpectedReturn decimal.Decimal `json:"expected_return"`
	ActiveCount    int             `json:"active_count"`
}

// Summarize считает агрегаты по списку инвестиций (отменённые не учитываются).
func Summarize(items []Investment) PortfolioSummary {
	var s PortfolioSummary
	for _, it := range items {
		if it.Status == "cancelled" {
			continue
		}
		s.Invested = s.Invested.Add(it.Amount)
		s.CurrentValue = s.CurrentValue.Add(it.CurrentValue)
		s.ExpectedReturn = s.ExpectedReturn.Add(it.ExpectedReturn)
		if it.Status == "active" {
			s.ActiveCount++
		}
	}
	return s
}
