package dto

// PointQuery captures ledger filters from the query string.
type PointQuery struct {
	EmployeeID     string `form:"employee_id"`
	DateFrom       string `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo         string `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Status         string `form:"status" validate:"omitempty,oneof=active excused expired"`
	ExpirationType string `form:"expiration_type" validate:"omitempty,oneof=none sro gbro"`
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size"`
}

// ExcusePointRequest moves an active point to excused.
type ExcusePointRequest struct {
	ExcusedBy string `json:"excused_by" validate:"required"`
	Reason    string `json:"reason" validate:"required,max=500"`
}

// RunExpirationRequest triggers a manual expiration run. An empty date means today.
type RunExpirationRequest struct {
	RunDate string `json:"run_date" validate:"omitempty,datetime=2006-01-02"`
}
