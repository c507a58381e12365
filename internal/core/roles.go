package core

// FieldRole is a semantic business meaning a column can be mapped to.
// The set is closed; the export format depends on it.
type FieldRole string

const (
	// RoleIdentifier is the product code / SKU column.
	RoleIdentifier FieldRole = "identifier"
	// RoleQuantity is the ordered quantity column.
	RoleQuantity FieldRole = "quantity"
	// RoleUnitPrice is the net unit price column.
	RoleUnitPrice FieldRole = "unit_price"
	// RoleCurrency is an optional currency-code column, used only to
	// pre-select the conversion currency. Never required.
	RoleCurrency FieldRole = "currency"
)

// RoleInfo describes one field role for display and validation.
type RoleInfo struct {
	Role     FieldRole `json:"role"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
}

// Roles lists every mappable role in display order.
var Roles = []RoleInfo{
	{Role: RoleIdentifier, Label: "Identifier (SKU)", Required: true},
	{Role: RoleQuantity, Label: "Quantity", Required: true},
	{Role: RoleUnitPrice, Label: "Unit price", Required: true},
	{Role: RoleCurrency, Label: "Currency", Required: false},
}

// RequiredRoles lists the roles that must be mapped before an export, and
// whose empty cells cause a data row to be dropped from the output.
var RequiredRoles = []FieldRole{RoleIdentifier, RoleQuantity, RoleUnitPrice}

// IsRequired reports whether role must be mapped before projection.
func IsRequired(role FieldRole) bool {
	for _, r := range RequiredRoles {
		if r == role {
			return true
		}
	}
	return false
}
