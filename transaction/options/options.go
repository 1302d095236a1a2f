package options

// TransactionOptions represent options that can be used to configure a Find operation
type TransactionOptions struct {
	// filters transactions that match any id in this slice
	IDs []string
	// filters transactions that match any type in this slice
	Types []string
	// filters transactions that match any status in this slice
	Statuses []string
	// filters transactions that have an amount in this range (inclusive)
	Amount *DecimalRange
	// filters transactions that were created in this range (inclusive)
	Timestamp *TimeRange
	// pagination, applied newest-first; zero values disable paging
	Page    int
	PerPage int
}

func NewTransactionOptions() *TransactionOptions {
	return &TransactionOptions{}
}

func (this *TransactionOptions) SetIDs(v ...string) *TransactionOptions {
	this.IDs = v
	return this
}

func (this *TransactionOptions) SetTypes(v ...string) *TransactionOptions {
	this.Types = v
	return this
}

func (this *TransactionOptions) SetStatuses(v ...string) *TransactionOptions {
	this.Statuses = v
	return this
}

func (this *TransactionOptions) SetAmountRange(v *DecimalRange) *TransactionOptions {
	this.Amount = v
	return this
}

func (this *TransactionOptions) SetTimeRange(v *TimeRange) *TransactionOptions {
	this.Timestamp = v
	return this
}

func (this *TransactionOptions) SetPage(page, perPage int) *TransactionOptions {
	this.Page = page
	this.PerPage = perPage
	return this
}
