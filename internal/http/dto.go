package http

import (
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	"expensetracker/internal/services"
)

type categoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type categoryResponse struct {
	ID   int64  `json:"category_id"`
	Name string `json:"name"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name}
}

type expenseCreateRequest struct {
	Amount      float64    `json:"amount" validate:"gt=0"`
	Description string     `json:"description" validate:"required,max=200"`
	Category    string     `json:"category" validate:"required,max=100"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

type expenseUpdateRequest struct {
	Amount      *float64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=200"`
	Category    *string  `json:"category,omitempty" validate:"omitempty,max=100"`
}

type expenseResponse struct {
	ID          int64     `json:"expense_id"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	CategoryID  int64     `json:"category_id"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toExpenseResponse(e core.Expense, names map[int64]string) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Amount:      e.Amount.Float64(),
		Description: e.Description,
		CategoryID:  e.CategoryID,
		Category:    names[e.CategoryID],
		CreatedAt:   e.CreatedAt.UTC(),
	}
}

type budgetCreateRequest struct {
	Amount   float64 `json:"amount" validate:"gt=0"`
	Month    int     `json:"month" validate:"min=1,max=12"`
	Year     int     `json:"year" validate:"min=1970,max=9999"`
	Category string  `json:"category" validate:"required,max=100"`
}

type budgetUpdateRequest struct {
	Amount   *float64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Month    *int     `json:"month,omitempty" validate:"omitempty,min=1,max=12"`
	Year     *int     `json:"year,omitempty" validate:"omitempty,min=1970,max=9999"`
	Category *string  `json:"category,omitempty" validate:"omitempty,max=100"`
}

type budgetResponse struct {
	ID         int64             `json:"budget_id"`
	Amount     float64           `json:"amount"`
	Month      int               `json:"month"`
	Year       int               `json:"year"`
	CategoryID int64             `json:"category_id"`
	Category   *categoryResponse `json:"category,omitempty"`
}

func toBudgetResponse(b core.Budget, names map[int64]string) budgetResponse {
	resp := budgetResponse{
		ID:         b.ID,
		Amount:     b.Amount.Float64(),
		Month:      b.Month,
		Year:       b.Year,
		CategoryID: b.CategoryID,
	}
	if name, ok := names[b.CategoryID]; ok {
		resp.Category = &categoryResponse{ID: b.CategoryID, Name: name}
	}
	return resp
}

type budgetStatusResponse struct {
	BudgetID   int64   `json:"budget_id"`
	Category   string  `json:"category"`
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	Budget     float64 `json:"budget"`
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	OverBudget bool    `json:"over_budget"`
}

func toBudgetStatusResponse(st services.BudgetStatus) budgetStatusResponse {
	return budgetStatusResponse{
		BudgetID:   st.Budget.ID,
		Category:   st.Category,
		Year:       st.Budget.Year,
		Month:      st.Budget.Month,
		Budget:     st.Budget.Amount.Float64(),
		Spent:      st.Spent.Float64(),
		Remaining:  st.Remaining.Float64(),
		OverBudget: st.Over,
	}
}

type summaryResponse struct {
	Year          int                `json:"year"`
	Month         *int               `json:"month,omitempty"`
	Week          *int               `json:"week,omitempty"`
	TotalExpenses float64            `json:"total_expenses"`
	ByCategory    map[string]float64 `json:"by_category"`
	Count         int                `json:"count"`
}

func toSummaryResponse(s core.Summary) summaryResponse {
	resp := summaryResponse{
		Year:          s.Year,
		TotalExpenses: s.Total.Float64(),
		ByCategory:    make(map[string]float64, len(s.ByCategory)),
		Count:         s.Count,
	}
	if s.Month > 0 {
		month := s.Month
		resp.Month = &month
	}
	if s.Week >= 0 {
		week := s.Week
		resp.Week = &week
	}
	for _, c := range s.ByCategory {
		resp.ByCategory[c.Name] = c.Amount.Float64()
	}
	return resp
}

type smsRequest struct {
	Message string `json:"message"`
}

// moneyFromFloat converts a JSON amount to cents, rounding half-up.
func moneyFromFloat(f float64) (core.Money, error) {
	return core.MoneyFromDecimal(decimal.NewFromFloat(f))
}

func optionalMoney(f *float64) (*core.Money, error) {
	if f == nil {
		return nil, nil
	}
	m, err := moneyFromFloat(*f)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
