package models

import "time"

// User represents a user account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Record is a single financial entry. Expenses and incomes share this shape
// and live in separate tables.
type Record struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description *string   `json:"description"`
	Date        time.Time `json:"date"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Category buckets offered by the dashboard forms. The server stores whatever
// category string a record was created with; anything outside these lists is
// grouped under the fallback bucket when displayed.
var (
	ExpenseCategories = []string{"Alimentação", "Transporte", "Moradia", "Lazer", "Saúde", "Outros"}
	IncomeCategories  = []string{"Salário", "Freelance", "Investimento", "Bônus", "Outro"}
)

const (
	// DefaultExpenseCategory is the display bucket for unknown expense categories.
	DefaultExpenseCategory = "Outros"
	// DefaultIncomeCategory is the display bucket for unknown income categories.
	DefaultIncomeCategory = "Outro"
)
