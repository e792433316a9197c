package service

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/fenxiao-mall/internal/constants"
	"github.com/fenxiao-mall/internal/models"
	"github.com/fenxiao-mall/internal/repository"
)

const distributorCodeLength = 8

// DistributorService 分销员业务服务
type DistributorService struct {
	repo           repository.DistributorRepository
	userRepo       repository.UserRepository
	orderRepo      repository.DistributionOrderRepository
	settingService *SettingService
}

// NewDistributorService 创建分销员服务
func NewDistributorService(
	repo repository.DistributorRepository,
	userRepo repository.UserRepository,
	orderRepo repository.DistributionOrderRepository,
	settingService *SettingService,
) *DistributorService {
	return &DistributorService{
		repo:           repo,
		userRepo:       userRepo,
		orderRepo:      orderRepo,
		settingService: settingService,
	}
}

// DistributorApplyInput 分销员申请输入
type DistributorApplyInput struct {
	ParentCode string
	Remark     string
}

// DistributorAuditInput 分销员审核输入
type DistributorAuditInput struct {
	Action       string
	RejectReason string
}

// DistributorAdminItem 后台分销员列表项
type DistributorAdminItem struct {
	Distributor models.Distributor                   `json:"distributor"`
	Stats       repository.DistributorStatsAggregate `json:"stats"`
}

// Apply 用户申请成为分销员
func (s *DistributorService) Apply(userID uint, input DistributorApplyInput) (*models.Distributor, error) {
	if userID == 0 || s.repo == nil || s.userRepo == nil {
		return nil, ErrNotFound
	}
	setting, err := s.settingService.GetDistributionSetting()
	if err != nil {
		return nil, err
	}
	if !setting.Enabled {
		return nil, ErrDistributionDisabled
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(user.Status) == constants.UserStatusDisabled {
		return nil, ErrUserDisabled
	}

	parentID, err := s.resolveParent(userID, input.ParentCode)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// 被驳回后允许重新申请，其余状态视为已存在。
		if strings.TrimSpace(existing.Status) != constants.DistributorStatusRejected {
			return nil, ErrDistributorExists
		}
		existing.ParentID = parentID
		existing.Status = constants.DistributorStatusPending
		existing.ApplyRemark = strings.TrimSpace(input.Remark)
		existing.RejectReason = ""
		existing.AuditedBy = nil
		existing.AuditedAt = nil
		if err := s.repo.Update(existing); err != nil {
			return nil, err
		}
		return s.repo.GetByID(existing.ID)
	}

	const maxRetry = 8
	for i := 0; i < maxRetry; i++ {
		code, genErr := generateDistributorCode()
		if genErr != nil {
			return nil, genErr
		}
		distributor := &models.Distributor{
			UserID:              userID,
			ParentID:            parentID,
			Code:                code,
			Level:               constants.DistributorLevelPrimary,
			Status:              constants.DistributorStatusPending,
			TotalCommission:     models.ZeroMoney(),
			AvailableCommission: models.ZeroMoney(),
			FrozenCommission:    models.ZeroMoney(),
			ApplyRemark:         strings.TrimSpace(input.Remark),
		}
		if err := s.repo.Create(distributor); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, err
		}
		return s.repo.GetByID(distributor.ID)
	}
	return nil, ErrDistributorCodeInvalid
}

// Audit 管理端审核分销员申请
func (s *DistributorService) Audit(adminID, distributorID uint, input DistributorAuditInput) (*models.Distributor, error) {
	if distributorID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	action := strings.TrimSpace(input.Action)
	if action != constants.DistributorAuditActionApprove && action != constants.DistributorAuditActionReject {
		return nil, ErrDistributorParentInvalid
	}

	distributor, err := s.repo.GetByID(distributorID)
	if err != nil {
		return nil, err
	}
	if distributor == nil {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(distributor.Status) != constants.DistributorStatusPending {
		return nil, ErrDistributorAlreadyAudited
	}

	now := time.Now()
	distributor.AuditedBy = &adminID
	distributor.AuditedAt = &now
	if action == constants.DistributorAuditActionApprove {
		distributor.Status = constants.DistributorStatusApproved
		distributor.RejectReason = ""
	} else {
		distributor.Status = constants.DistributorStatusRejected
		distributor.RejectReason = strings.TrimSpace(input.RejectReason)
	}
	if err := s.repo.Update(distributor); err != nil {
		return nil, err
	}
	return s.repo.GetByID(distributorID)
}

// UpdateStatus 管理端启用/禁用分销员
func (s *DistributorService) UpdateStatus(distributorID uint, rawStatus string) (*models.Distributor, error) {
	if distributorID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	nextStatus := strings.TrimSpace(rawStatus)
	if nextStatus != constants.DistributorStatusApproved && nextStatus != constants.DistributorStatusDisabled {
		return nil, NewStateConflictError("distributor", constants.DistributorStatusApproved, nextStatus)
	}

	distributor, err := s.repo.GetByID(distributorID)
	if err != nil {
		return nil, err
	}
	if distributor == nil {
		return nil, ErrNotFound
	}
	current := strings.TrimSpace(distributor.Status)
	if current == nextStatus {
		return distributor, nil
	}
	if current != constants.DistributorStatusApproved && current != constants.DistributorStatusDisabled {
		return nil, NewStateConflictError("distributor", constants.DistributorStatusApproved, current)
	}
	if err := s.repo.UpdateStatus(distributorID, nextStatus, time.Now()); err != nil {
		return nil, err
	}
	return s.repo.GetByID(distributorID)
}

// GetByUserID 按用户ID获取分销员
func (s *DistributorService) GetByUserID(userID uint) (*models.Distributor, error) {
	if userID == 0 || s.repo == nil {
		return nil, nil
	}
	return s.repo.GetByUserID(userID)
}

// GetByID 按ID获取分销员
func (s *DistributorService) GetByID(id uint) (*models.Distributor, error) {
	if id == 0 || s.repo == nil {
		return nil, nil
	}
	return s.repo.GetByID(id)
}

// UplineChain 返回从指定分销员向上的推荐链（含自身），长度受最大层级限制。
// 按已访问集合防御脏数据中的环，遇到环立即截断。
func (s *DistributorService) UplineChain(distributorID uint) ([]models.Distributor, error) {
	if distributorID == 0 || s.repo == nil {
		return []models.Distributor{}, nil
	}

	chain := make([]models.Distributor, 0, constants.MaxCommissionChainDepth)
	visited := make(map[uint]struct{}, constants.MaxCommissionChainDepth)
	currentID := distributorID
	for len(chain) < constants.MaxCommissionChainDepth {
		if _, ok := visited[currentID]; ok {
			break
		}
		visited[currentID] = struct{}{}

		distributor, err := s.repo.GetByID(currentID)
		if err != nil {
			return nil, err
		}
		if distributor == nil {
			break
		}
		chain = append(chain, *distributor)
		if distributor.ParentID == nil || *distributor.ParentID == 0 {
			break
		}
		currentID = *distributor.ParentID
	}
	return chain, nil
}

// Team 查询直接下级
func (s *DistributorService) Team(distributorID uint) ([]models.Distributor, error) {
	if distributorID == 0 || s.repo == nil {
		return []models.Distributor{}, nil
	}
	return s.repo.ListChildren(distributorID)
}

// AdminList 后台分销员列表（附带统计）
func (s *DistributorService) AdminList(filter repository.DistributorListFilter) ([]DistributorAdminItem, int64, error) {
	if s.repo == nil {
		return []DistributorAdminItem{}, 0, nil
	}
	rows, total, err := s.repo.List(filter)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	stats := map[uint]repository.DistributorStatsAggregate{}
	if s.orderRepo != nil {
		stats, err = s.orderRepo.GetDistributorStatsBatch(ids)
		if err != nil {
			return nil, 0, err
		}
	}
	items := make([]DistributorAdminItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, DistributorAdminItem{
			Distributor: row,
			Stats:       stats[row.ID],
		})
	}
	return items, total, nil
}

func (s *DistributorService) resolveParent(userID uint, rawCode string) (*uint, error) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if code == "" {
		return nil, nil
	}
	parent, err := s.repo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, ErrDistributorCodeInvalid
	}
	if parent.UserID == userID {
		return nil, ErrDistributorParentInvalid
	}
	if strings.TrimSpace(parent.Status) != constants.DistributorStatusApproved {
		return nil, ErrDistributorParentInvalid
	}
	parentID := parent.ID
	return &parentID, nil
}

func generateDistributorCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	var builder strings.Builder
	builder.Grow(distributorCodeLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < distributorCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(alphabet[n.Int64()])
	}
	return builder.String(), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
