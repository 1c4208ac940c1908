package auth

// AuthPath is the login/registration screen and the fallback destination.
const AuthPath = "/auth"

// DashboardFor returns the canonical landing path for role.
// Unknown and empty roles resolve to AuthPath.
func DashboardFor(role Role) string {
	switch role {
	case RoleFarmer:
		return "/farmer-dashboard"
	case RoleBuyer:
		return "/buyer-dashboard"
	case RoleInputSeller:
		return "/input-seller-dashboard"
	case RoleExpert:
		return "/expert-dashboard"
	case RoleLogistics:
		return "/logistics-dashboard"
	case RoleFinancial:
		return "/financial-dashboard"
	default:
		return AuthPath
	}
}

// DashboardForPrincipal is DashboardFor for a possibly absent principal.
func DashboardForPrincipal(p *Principal) string {
	if p == nil {
		return AuthPath
	}
	return DashboardFor(p.Role)
}
