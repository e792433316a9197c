package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserListFilter 查询用户列表的过滤条件
type UserListFilter struct {
	Page     int
	PageSize int
	Status   string
	Keyword  string
}

// ProductListFilter 查询商品列表的过滤条件
type ProductListFilter struct {
	Page             int
	PageSize         int
	Search           string
	OnlyActive       bool
	DistributionOnly bool
}

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	Status      string
	OrderNo     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// DistributorListFilter 查询分销员列表的过滤条件
type DistributorListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	ParentID uint
	Code     string
	Status   string
	Level    int
	Keyword  string
}

// DistributionOrderListFilter 查询佣金明细列表的过滤条件
type DistributionOrderListFilter struct {
	Page          int
	PageSize      int
	DistributorID uint
	OrderID       uint
	OrderNo       string
	Status        string
	Level         int
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// DistributionCashListFilter 查询提现申请列表的过滤条件
type DistributionCashListFilter struct {
	Page          int
	PageSize      int
	DistributorID uint
	CashNo        string
	Status        string
	Method        string
	Keyword       string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// CommissionLedgerListFilter 查询佣金流水列表的过滤条件
type CommissionLedgerListFilter struct {
	Page          int
	PageSize      int
	DistributorID uint
	Bucket        string
	SourceKind    string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// DistributorStatsAggregate 分销员统计汇总
type DistributorStatsAggregate struct {
	OrderCount       int64
	SettledOrders    int64
	TeamSize         int64
	TotalCommission  decimal.Decimal
	PendingAmount    decimal.Decimal
	PaidAmount       decimal.Decimal
	RefundedAmount   decimal.Decimal
	WithdrawnAmount  decimal.Decimal
	WithdrawingCount int64
}

// DistributionOverviewAggregate 平台分销总览汇总
type DistributionOverviewAggregate struct {
	DistributorCount int64
	PendingApplies   int64
	OrderCount       int64
	TotalCommission  decimal.Decimal
	PendingAmount    decimal.Decimal
	PaidAmount       decimal.Decimal
	RefundedAmount   decimal.Decimal
	PendingCashes    int64
	CashedAmount     decimal.Decimal
}
