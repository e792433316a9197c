package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CashService 分销提现业务服务
// 状态机：pending → processing → completed；pending 可被驳回或取消，
// processing 可被驳回。申请冻结可提现余额，关闭时要么原样解冻要么支付划出。
type CashService struct {
	repo            repository.DistributionCashRepository
	distributorRepo repository.DistributorRepository
	ledgerRepo      repository.CommissionLedgerRepository
	settingService  *SettingService
}

// NewCashService 创建提现服务
func NewCashService(
	repo repository.DistributionCashRepository,
	distributorRepo repository.DistributorRepository,
	ledgerRepo repository.CommissionLedgerRepository,
	settingService *SettingService,
) *CashService {
	return &CashService{
		repo:            repo,
		distributorRepo: distributorRepo,
		ledgerRepo:      ledgerRepo,
		settingService:  settingService,
	}
}

// CashRequestInput 提现申请输入
type CashRequestInput struct {
	Amount  decimal.Decimal
	Method  string
	Account string
}

// CashAuditInput 提现审核输入
type CashAuditInput struct {
	Action       string
	RejectReason string
}

// Request 分销员提交提现申请
func (s *CashService) Request(userID uint, input CashRequestInput) (*models.DistributionCash, error) {
	if userID == 0 || s.repo == nil || s.distributorRepo == nil {
		return nil, ErrDistributorNotFound
	}
	setting, err := s.settingService.GetDistributionSetting()
	if err != nil {
		return nil, err
	}
	if !setting.Enabled {
		return nil, ErrDistributionDisabled
	}

	amount := input.Amount.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrCashAmountInvalid
	}
	minAmount := decimal.NewFromFloat(setting.MinCashAmount).Round(2)
	if amount.LessThan(minAmount) {
		return nil, ErrCashAmountBelowMinimum
	}
	method := strings.ToLower(strings.TrimSpace(input.Method))
	feeRate, ok := setting.FeeRateForMethod(method)
	if !ok {
		return nil, ErrCashMethodInvalid
	}
	account := strings.TrimSpace(input.Account)
	if account == "" {
		return nil, ErrCashAccountInvalid
	}

	fee := amount.Mul(decimal.NewFromFloat(feeRate)).Div(decimal.NewFromInt(100)).Round(2)
	actual := amount.Sub(fee).Round(2)
	if actual.LessThanOrEqual(decimal.Zero) {
		return nil, ErrCashAmountInvalid
	}

	var createdID uint
	err = s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		distributorTx := s.distributorRepo.WithTx(tx)
		ledgerTx := s.ledgerRepo.WithTx(tx)

		distributor, err := distributorTx.GetByUserID(userID)
		if err != nil {
			return err
		}
		if distributor == nil {
			return ErrDistributorNotFound
		}
		if strings.TrimSpace(distributor.Status) != constants.DistributorStatusApproved {
			return ErrDistributorNotApproved
		}
		distributor, err = distributorTx.GetByIDForUpdate(distributor.ID)
		if err != nil {
			return err
		}
		if distributor == nil {
			return ErrDistributorNotFound
		}

		open, err := repoTx.GetOpenByDistributor(distributor.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return ErrDuplicateCashRequest
		}

		if distributor.AvailableCommission.Decimal.LessThan(amount) {
			return ErrInsufficientBalance
		}

		activeFlag := distributor.ID
		cash := &models.DistributionCash{
			CashNo:        generateCashNo(),
			DistributorID: distributor.ID,
			Amount:        models.NewMoneyFromDecimal(amount),
			Fee:           models.NewMoneyFromDecimal(fee),
			ActualAmount:  models.NewMoneyFromDecimal(actual),
			Method:        method,
			Account:       account,
			Status:        constants.CashStatusPending,
			ActiveFlag:    &activeFlag,
		}
		if err := repoTx.Create(cash); err != nil {
			// 唯一索引兜底并发重复申请
			if isUniqueViolation(err) {
				return ErrDuplicateCashRequest
			}
			return err
		}

		distributor.AvailableCommission = models.NewMoneyFromDecimal(distributor.AvailableCommission.Decimal.Sub(amount))
		if err := appendCommissionLedger(ledgerTx, distributor, constants.LedgerBucketAvailable, amount.Neg(),
			fmt.Sprintf("cash:%d:freeze:available", cash.ID), constants.LedgerSourceCashFreeze, cash.ID, cash.CashNo); err != nil {
			return err
		}
		distributor.FrozenCommission = models.NewMoneyFromDecimal(distributor.FrozenCommission.Decimal.Add(amount))
		if err := appendCommissionLedger(ledgerTx, distributor, constants.LedgerBucketFrozen, amount,
			fmt.Sprintf("cash:%d:freeze:frozen", cash.ID), constants.LedgerSourceCashFreeze, cash.ID, cash.CashNo); err != nil {
			return err
		}
		if err := distributorTx.Update(distributor); err != nil {
			return err
		}

		createdID = cash.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(createdID)
}

// Audit 管理端审核提现申请（受理进入打款或驳回）
func (s *CashService) Audit(adminID, cashID uint, input CashAuditInput) (*models.DistributionCash, error) {
	if cashID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	action := strings.TrimSpace(input.Action)
	if action != constants.CashAuditActionProcess && action != constants.CashAuditActionReject {
		return nil, ErrCashMethodInvalid
	}

	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		cash, err := repoTx.GetByIDForUpdate(cashID)
		if err != nil {
			return err
		}
		if cash == nil {
			return ErrNotFound
		}
		now := time.Now()
		current := strings.TrimSpace(cash.Status)

		switch action {
		case constants.CashAuditActionProcess:
			if current != constants.CashStatusPending {
				return NewStateConflictError("cash", constants.CashStatusPending, current)
			}
			cash.Status = constants.CashStatusProcessing
			cash.AuditedBy = &adminID
			cash.AuditedAt = &now
			return repoTx.Update(cash)

		case constants.CashAuditActionReject:
			if current != constants.CashStatusPending && current != constants.CashStatusProcessing {
				return NewStateConflictError("cash", constants.CashStatusPending, current)
			}
			cash.Status = constants.CashStatusRejected
			cash.RejectReason = strings.TrimSpace(input.RejectReason)
			cash.AuditedBy = &adminID
			cash.AuditedAt = &now
			cash.ActiveFlag = nil
			if err := repoTx.Update(cash); err != nil {
				return err
			}
			return s.revertFrozenTx(tx, cash)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(cashID)
}

// Complete 管理端确认打款完成
func (s *CashService) Complete(adminID, cashID uint, externalTxnNo string) (*models.DistributionCash, error) {
	if cashID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		distributorTx := s.distributorRepo.WithTx(tx)
		ledgerTx := s.ledgerRepo.WithTx(tx)

		cash, err := repoTx.GetByIDForUpdate(cashID)
		if err != nil {
			return err
		}
		if cash == nil {
			return ErrNotFound
		}
		current := strings.TrimSpace(cash.Status)
		if current != constants.CashStatusProcessing {
			return NewStateConflictError("cash", constants.CashStatusProcessing, current)
		}

		distributor, err := distributorTx.GetByIDForUpdate(cash.DistributorID)
		if err != nil {
			return err
		}
		if distributor == nil {
			return ErrDistributorNotFound
		}

		amount := cash.Amount.Decimal.Round(2)
		distributor.FrozenCommission = models.NewMoneyFromDecimal(distributor.FrozenCommission.Decimal.Sub(amount))
		if err := appendCommissionLedger(ledgerTx, distributor, constants.LedgerBucketFrozen, amount.Neg(),
			fmt.Sprintf("cash:%d:payout:frozen", cash.ID), constants.LedgerSourceCashPayout, cash.ID, cash.CashNo); err != nil {
			return err
		}
		if err := distributorTx.Update(distributor); err != nil {
			return err
		}

		now := time.Now()
		cash.Status = constants.CashStatusCompleted
		cash.ExternalTxnNo = strings.TrimSpace(externalTxnNo)
		cash.CompletedAt = &now
		cash.ActiveFlag = nil
		if cash.AuditedBy == nil {
			cash.AuditedBy = &adminID
		}
		return repoTx.Update(cash)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(cashID)
}

// Cancel 分销员取消自己的待审核申请
func (s *CashService) Cancel(userID, cashID uint) (*models.DistributionCash, error) {
	if userID == 0 || cashID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		distributorTx := s.distributorRepo.WithTx(tx)

		cash, err := repoTx.GetByIDForUpdate(cashID)
		if err != nil {
			return err
		}
		if cash == nil {
			return ErrNotFound
		}
		distributor, err := distributorTx.GetByUserID(userID)
		if err != nil {
			return err
		}
		if distributor == nil || distributor.ID != cash.DistributorID {
			return ErrNotFound
		}
		current := strings.TrimSpace(cash.Status)
		if current != constants.CashStatusPending {
			return NewStateConflictError("cash", constants.CashStatusPending, current)
		}

		now := time.Now()
		cash.Status = constants.CashStatusCancelled
		cash.CanceledAt = &now
		cash.ActiveFlag = nil
		if err := repoTx.Update(cash); err != nil {
			return err
		}
		return s.revertFrozenTx(tx, cash)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(cashID)
}

// GetByID 查询提现申请
func (s *CashService) GetByID(id uint) (*models.DistributionCash, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.GetByID(id)
}

// List 查询提现申请列表
func (s *CashService) List(filter repository.DistributionCashListFilter) ([]models.DistributionCash, int64, error) {
	if s.repo == nil {
		return []models.DistributionCash{}, 0, nil
	}
	return s.repo.List(filter)
}

// revertFrozenTx 驳回或取消后把冻结金额原样退回可提现余额
func (s *CashService) revertFrozenTx(tx *gorm.DB, cash *models.DistributionCash) error {
	distributorTx := s.distributorRepo.WithTx(tx)
	ledgerTx := s.ledgerRepo.WithTx(tx)

	distributor, err := distributorTx.GetByIDForUpdate(cash.DistributorID)
	if err != nil {
		return err
	}
	if distributor == nil {
		return ErrDistributorNotFound
	}

	amount := cash.Amount.Decimal.Round(2)
	distributor.FrozenCommission = models.NewMoneyFromDecimal(distributor.FrozenCommission.Decimal.Sub(amount))
	if err := appendCommissionLedger(ledgerTx, distributor, constants.LedgerBucketFrozen, amount.Neg(),
		fmt.Sprintf("cash:%d:revert:frozen", cash.ID), constants.LedgerSourceCashRevert, cash.ID, cash.CashNo); err != nil {
		return err
	}
	distributor.AvailableCommission = models.NewMoneyFromDecimal(distributor.AvailableCommission.Decimal.Add(amount))
	if err := appendCommissionLedger(ledgerTx, distributor, constants.LedgerBucketAvailable, amount,
		fmt.Sprintf("cash:%d:revert:available", cash.ID), constants.LedgerSourceCashRevert, cash.ID, cash.CashNo); err != nil {
		return err
	}
	return distributorTx.Update(distributor)
}

func generateCashNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("CX%s%s", now, randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(n.String())
	}
	return b.String()
}
