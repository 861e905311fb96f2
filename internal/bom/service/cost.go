package service

import (
	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"github.com/shopspring/decimal"
)

// RollupCost 对已物化的BOM子树做后序成本归集
// 二级BOM以物料成本为基数，其余层级为0；每条包含边按用量乘入子树成本。
// 纯函数，不做任何I/O；缺失的物料成本按0处理，不阻塞读路径。
func RollupCost(bom *entity.BOM) decimal.Decimal {
	total := decimal.Zero
	if bom.Level == entity.BOMLevelComponent && bom.Material != nil {
		total = bom.Material.Cost
	}
	for i := range bom.Inclusions {
		edge := &bom.Inclusions[i]
		if edge.Included == nil {
			continue
		}
		total = total.Add(RollupCost(edge.Included).Mul(edge.Quantity))
	}
	return total
}
