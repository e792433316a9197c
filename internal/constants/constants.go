package constants

// 订单状态常量
const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusCompleted      = "completed"
	OrderStatusCanceled       = "canceled"
	OrderStatusRefunded       = "refunded"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 分销员状态常量
const (
	DistributorStatusPending  = "pending"
	DistributorStatusApproved = "approved"
	DistributorStatusRejected = "rejected"
	DistributorStatusDisabled = "disabled"
)

// 分销员等级常量
const (
	DistributorLevelPrimary = 1
	DistributorLevelSenior  = 2
)

// MaxCommissionChainDepth 分销佣金链路最大深度（自身、上级、上上级）
const MaxCommissionChainDepth = 3

// 分销佣金单状态常量
const (
	CommissionStatusPending   = "pending"
	CommissionStatusPaid      = "paid"
	CommissionStatusCancelled = "cancelled"
	CommissionStatusRefunded  = "refunded"
)

// 分销提现状态常量
const (
	CashStatusPending    = "pending"
	CashStatusProcessing = "processing"
	CashStatusCompleted  = "completed"
	CashStatusRejected   = "rejected"
	CashStatusCancelled  = "cancelled"
)

// 分销提现方式常量
const (
	CashMethodAlipay = "alipay"
	CashMethodWechat = "wechat"
	CashMethodBank   = "bank"
)

// 审核动作常量
const (
	DistributorAuditActionApprove = "approve"
	DistributorAuditActionReject  = "reject"
	CashAuditActionProcess        = "process"
	CashAuditActionReject         = "reject"
)

// 佣金余额账目类型常量
const (
	LedgerBucketTotal     = "total"
	LedgerBucketAvailable = "available"
	LedgerBucketFrozen    = "frozen"
)

// 佣金流水来源类型常量
const (
	LedgerSourceSettlement = "settlement"
	LedgerSourceRefund     = "refund"
	LedgerSourceCashFreeze = "cash_freeze"
	LedgerSourceCashRevert = "cash_revert"
	LedgerSourceCashPayout = "cash_payout"
)

// 事件发件箱状态常量
const (
	OutboxStatusPending    = "pending"
	OutboxStatusDispatched = "dispatched"
	OutboxStatusFailed     = "failed"
)

// 事件主题常量
const (
	EventTopicOrderPaid           = "order.paid"
	EventTopicOrderCompleted      = "order.completed"
	EventTopicOrderRefunded       = "order.refunded"
	EventTopicCommissionSettled   = "commission.settled"
	EventTopicCashStatusChanged   = "cash.status_changed"
	EventTopicDistributorApproved = "distributor.approved"
)

// 异步任务类型常量
const (
	TaskCommissionAttribute = "commission:attribute"
	TaskCommissionSettle    = "commission:settle"
	TaskOutboxDispatch      = "outbox:dispatch"
)

// 队列名称常量
const (
	QueueDefault = "default"
)

// 设置键常量
const (
	SettingKeySiteConfig   = "site_config"
	SettingKeyDistribution = "distribution_config"
)
