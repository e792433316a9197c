package repository

import "gorm.io/gorm"

// applyPagination 把页码换算为 limit/offset，页码小于 1 时按第一页处理。
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}
