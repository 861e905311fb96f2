package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-bom/internal/bom/entity"
	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
	"github.com/bitfantasy/nimo-bom/internal/bom/testutil"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type bomTestEnv struct {
	db  *gorm.DB
	svc *BOMService
	ctx context.Context
}

func setupBOMTest(t *testing.T) *bomTestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return &bomTestEnv{
		db:  db,
		svc: newTestService(repository.NewRepositories(db)),
		ctx: context.Background(),
	}
}

func (e *bomTestEnv) createComponent(t *testing.T, name, materialID string) *entity.BOM {
	t.Helper()
	bom, err := e.svc.CreateOrUpdateBOM(e.ctx, &CreateOrUpdateBOMInput{
		Name:       name,
		Level:      entity.BOMLevelComponent,
		MaterialID: &materialID,
	})
	if err != nil {
		t.Fatalf("create component %s: %v", name, err)
	}
	return bom
}

func (e *bomTestEnv) createGroup(t *testing.T, name string, inclusions []InclusionInput, productIDs []string) *entity.BOM {
	t.Helper()
	bom, err := e.svc.CreateOrUpdateBOM(e.ctx, &CreateOrUpdateBOMInput{
		Name:       name,
		Level:      entity.BOMLevelGroup,
		Inclusions: inclusions,
		ProductIDs: productIDs,
	})
	if err != nil {
		t.Fatalf("create group %s: %v", name, err)
	}
	return bom
}

func TestCreateValidationRejectedBeforeWrite(t *testing.T) {
	env := setupBOMTest(t)

	cases := []struct {
		name  string
		input *CreateOrUpdateBOMInput
	}{
		{"empty name", &CreateOrUpdateBOMInput{Name: "   ", Level: 1}},
		{"level out of range", &CreateOrUpdateBOMInput{Name: "x", Level: 4}},
		{"negative level", &CreateOrUpdateBOMInput{Name: "x", Level: -1}},
		{"level 2 without material", &CreateOrUpdateBOMInput{Name: "x", Level: 2}},
		{"material on level 1", &CreateOrUpdateBOMInput{Name: "x", Level: 1, MaterialID: strPtr("m1")}},
		{"inclusions on level 3", &CreateOrUpdateBOMInput{Name: "x", Level: 3, Inclusions: []InclusionInput{{IncludedBOMID: "y", Quantity: decimal.NewFromInt(1)}}}},
		{"product links on level 0", &CreateOrUpdateBOMInput{Name: "x", Level: 0, ProductIDs: []string{"p1"}}},
		{"parent link on level 2", &CreateOrUpdateBOMInput{Name: "x", Level: 2, MaterialID: strPtr("m1"), ParentID: strPtr("other")}},
	}
	for _, c := range cases {
		_, err := env.svc.CreateOrUpdateBOM(env.ctx, c.input)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: got %v, want ValidationError", c.name, err)
		}
	}

	var count int64
	env.db.Model(&entity.BOM{}).Count(&count)
	if count != 0 {
		t.Errorf("validation failures wrote %d rows, want 0", count)
	}
}

func strPtr(s string) *string { return &s }

func TestInclusionLevelMismatchRejected(t *testing.T) {
	env := setupBOMTest(t)

	accessory, err := env.svc.CreateOrUpdateBOM(env.ctx, &CreateOrUpdateBOMInput{
		Name:  "Cable Kit",
		Level: entity.BOMLevelAccessory,
	})
	if err != nil {
		t.Fatal(err)
	}

	// 0级只能包含1级，直挂3级配件必须被拒
	_, err = env.svc.CreateOrUpdateBOM(env.ctx, &CreateOrUpdateBOMInput{
		Name:  "Model X",
		Level: entity.BOMLevelProduct,
		Inclusions: []InclusionInput{
			{IncludedBOMID: accessory.ID, Quantity: decimal.NewFromInt(1)},
		},
	})
	var lme *LevelMismatchError
	if !errors.As(err, &lme) {
		t.Fatalf("got %v, want LevelMismatchError", err)
	}
	if lme.WantLevel != 1 || lme.GotLevel != 3 {
		t.Errorf("LevelMismatchError levels = want %d got %d", lme.WantLevel, lme.GotLevel)
	}
}

func TestInclusionQuantityAndExistence(t *testing.T) {
	env := setupBOMTest(t)
	material := testutil.SeedMaterial(t, env.db, "MAT-001", "Steel", decimal.NewFromInt(5))
	comp := env.createComponent(t, "Plate", material.ID)

	_, err := env.svc.CreateOrUpdateBOM(env.ctx, &CreateOrUpdateBOMInput{
		Name:  "Frame Group",
		Level: entity.BOMLevelGroup,
		Inclusions: []InclusionInput{
			{IncludedBOMID: comp.ID, Quantity: decimal.Zero},
		},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("zero quantity: got %v, want ValidationError", err)
	}

	_, err = env.svc.CreateOrUpdateBOM(env.ctx, &CreateOrUpdateBOMInput{
		Name:  "Frame Group",
		Level: entity.BOMLevelGroup,
		Inclusions: []InclusionInput{
			{IncludedBOMID: "no-such-bom", Quantity: decimal.NewFromInt(1)},
		},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing target: got %v, want ErrNotFound", err)
	}
}

func TestGetBOMWithCostScenarios(t *testing.T) {
	env := setupBOMTest(t)

	// 场景：8.75的滤芯，用量3的泵组 → 26.25
	material := testutil.SeedMaterial(t, env.db, "MAT-FC", "Filter Media", dec("8.75"))
	cartridge := env.createComponent(t, "Filter Cartridge", material.ID)

	got, err := env.svc.GetBOMWithCost(env.ctx, cartridge.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.TotalCost.Equal(dec("8.75")) {
		t.Errorf("component cost = %s, want 8.75", got.TotalCost)
	}

	group := env.createGroup(t, "Pump Group", []InclusionInput{
		{IncludedBOMID: cartridge.ID, Quantity: decimal.NewFromInt(3)},
	}, nil)

	got, err = env.svc.GetBOMWithCost(env.ctx, group.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.TotalCost.Equal(dec("26.25")) {
		t.Errorf("group cost = %s, want 26.25", got.TotalCost)
	}
	if got.ComponentCount != 1 {
		t.Errorf("component count = %d, want 1", got.ComponentCount)
	}
}

func TestGroupEditInPlace(t *testing.T) {
	env := setupBOMTest(t)
	material := testutil.SeedMaterial(t, env.db, "MAT-001", "Steel", decimal.NewFromInt(5))
	comp := env.createComponent(t, "Plate", material.ID)
	product := testutil.SeedProduct(t, env.db, "PRD-001", "Pump 2000")

	inclusions := []InclusionInput{{IncludedBOMID: comp.ID, Quantity: decimal.NewFromInt(2)}}
	group := env.createGroup(t, "Pump Group", inclusions, []string{product.ID})

	// 一级BOM带TargetID提交 → 原地更新，同一行同一版本
	updated, err := env.svc.CreateOrUpdateBOM(env.ctx, &CreateOrUpdateBOMInput{
		TargetID:   group.ID,
		Name:       "Pump Group Mk2",
		Level:      entity.BOMLevelGroup,
		Inclusions: inclusions,
		ProductIDs: []string{product.ID},
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != group.ID {
		t.Errorf("in-place edit created new row %s, want %s", updated.ID, group.ID)
	}
	if updated.Version != group.Version {
		t.Errorf("in-place edit changed version %s → %s", group.Version, updated.Version)
	}
	if updated.Name != "Pump Group Mk2" {
		t.Errorf("name = %s, want Pump Group Mk2", updated.Name)
	}
	if len(updated.Inclusions) != 1 || len(updated.ProductLinks) != 1 {
		t.Errorf("edges after edit: %d inclusions, %d links, want 1 and 1",
			len(updated.Inclusions), len(updated.ProductLinks))
	}

	var count int64
	env.db.Model(&entity.BOM{}).Where("level = ?", entity.BOMLevelGroup).Count(&count)
	if count != 1 {
		t.Errorf("group rows = %d, want 1", count)
	}
}

func TestComponentEditCreatesNewVersion(t *testing.T) {
	env := setupBOMTest(t)
	matA := testutil.SeedMaterial(t, env.db, "MAT-A", "Media A", dec("8.75"))
	matB := testutil.SeedMaterial(t, env.db, "MAT-B", "Media B", dec("9.10"))

	v1 := env.createComponent(t, "Filter Cartridge", matA.ID)

	// 2级BOM的“编辑”总是产生新版本行，旧版本保持原成本基础
	v2, err := env.svc.CreateOrUpdateBOM(env.ctx, &CreateOrUpdateBOMInput{
		TargetID:   v1.ID,
		Name:       "Filter Cartridge",
		Level:      entity.BOMLevelComponent,
		MaterialID: &matB.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if v2.ID == v1.ID {
		t.Fatal("level 2 edit mutated the existing row")
	}
	if v1.Version != "v1" || v2.Version != "v2" {
		t.Errorf("versions = %s, %s, want v1, v2", v1.Version, v2.Version)
	}

	old, err := env.svc.GetBOMWithCost(env.ctx, v1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !old.TotalCost.Equal(dec("8.75")) {
		t.Errorf("v1 cost = %s, want original 8.75", old.TotalCost)
	}
	fresh, err := env.svc.GetBOMWithCost(env.ctx, v2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !fresh.TotalCost.Equal(dec("9.10")) {
		t.Errorf("v2 cost = %s, want 9.10", fresh.TotalCost)
	}
}

func TestDuplicateCopiesEdgesNotProductLinks(t *testing.T) {
	env := setupBOMTest(t)
	material := testutil.SeedMaterial(t, env.db, "MAT-001", "Steel", decimal.NewFromInt(5))
	comp := env.createComponent(t, "Plate", material.ID)
	product := testutil.SeedProduct(t, env.db, "PRD-001", "Pump 2000")

	group := env.createGroup(t, "Pump Group", []InclusionInput{
		{IncludedBOMID: comp.ID, Quantity: decimal.NewFromInt(2)},
	}, []string{product.ID})

	dup, err := env.svc.DuplicateBOM(env.ctx, group.ID)
	if err != nil {
		t.Fatal(err)
	}
	if dup.ID == group.ID {
		t.Fatal("duplicate returned the source row")
	}
	if dup.Name != group.Name || dup.Level != group.Level {
		t.Errorf("duplicate identity = (%s, %d), want (%s, %d)", dup.Name, dup.Level, group.Name, group.Level)
	}
	if dup.Version != "v2" {
		t.Errorf("duplicate version = %s, want v2", dup.Version)
	}

	full, err := env.svc.GetBOMWithCost(env.ctx, dup.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(full.Inclusions) != 1 {
		t.Fatalf("duplicate has %d inclusions, want 1", len(full.Inclusions))
	}
	edge := full.Inclusions[0]
	if edge.IncludedBOMID != comp.ID || !edge.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Errorf("duplicate edge = (%s, %s), want (%s, 2)", edge.IncludedBOMID, edge.Quantity, comp.ID)
	}
	if len(full.ProductLinks) != 0 {
		t.Errorf("duplicate has %d product links, want 0", len(full.ProductLinks))
	}
}

func TestDeleteBlockedByIncludingBOM(t *testing.T) {
	env := setupBOMTest(t)
	material := testutil.SeedMaterial(t, env.db, "MAT-001", "Steel", decimal.NewFromInt(5))
	comp := env.createComponent(t, "Plate", material.ID)
	group := env.createGroup(t, "Pump Group", []InclusionInput{
		{IncludedBOMID: comp.ID, Quantity: decimal.NewFromInt(1)},
	}, nil)

	_, err := env.svc.DeleteBOM(env.ctx, comp.ID, false)
	var refErr *ReferencedByBOMError
	if !errors.As(err, &refErr) {
		t.Fatalf("got %v, want ReferencedByBOMError", err)
	}
	if len(refErr.ReferencingBOMIDs) != 1 || refErr.ReferencingBOMIDs[0] != group.ID {
		t.Errorf("referencing ids = %v, want [%s]", refErr.ReferencingBOMIDs, group.ID)
	}

	// 强制级联也不放行被包含的BOM
	if _, err := env.svc.DeleteBOM(env.ctx, comp.ID, true); !errors.As(err, &refErr) {
		t.Errorf("confirmCascade bypassed inclusion check: %v", err)
	}
}

func TestDeleteBlockedByWorkOrderWithoutConfirm(t *testing.T) {
	env := setupBOMTest(t)
	group := env.createGroup(t, "Pump Group", nil, nil)
	wo := testutil.SeedWorkOrder(t, env.db, "WO-001", group.ID)

	_, err := env.svc.DeleteBOM(env.ctx, group.ID, false)
	var refErr *ReferencedByWorkOrderError
	if !errors.As(err, &refErr) {
		t.Fatalf("got %v, want ReferencedByWorkOrderError", err)
	}
	if len(refErr.WorkOrderIDs) != 1 || refErr.WorkOrderIDs[0] != wo.ID {
		t.Errorf("work order ids = %v, want [%s]", refErr.WorkOrderIDs, wo.ID)
	}

	// 被拒后数据原样
	var bomCount, woCount int64
	env.db.Model(&entity.BOM{}).Count(&bomCount)
	env.db.Model(&entity.WorkOrder{}).Count(&woCount)
	if bomCount != 1 || woCount != 1 {
		t.Errorf("rows after rejected delete: %d boms, %d work orders, want 1 and 1", bomCount, woCount)
	}
}

func TestDeleteCascadeWithConfirm(t *testing.T) {
	env := setupBOMTest(t)
	group := env.createGroup(t, "Pump Group", nil, nil)
	wo := testutil.SeedWorkOrder(t, env.db, "WO-001", group.ID)

	result, err := env.svc.DeleteBOM(env.ctx, group.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Deleted {
		t.Error("result.Deleted = false, want true")
	}
	if len(result.DeletedWorkOrders) != 1 || result.DeletedWorkOrders[0] != wo.ID {
		t.Errorf("deleted work orders = %v, want [%s]", result.DeletedWorkOrders, wo.ID)
	}

	var bomCount, woCount, itemCount, execCount int64
	env.db.Model(&entity.BOM{}).Count(&bomCount)
	env.db.Model(&entity.WorkOrder{}).Count(&woCount)
	env.db.Model(&entity.WorkOrderItem{}).Count(&itemCount)
	env.db.Model(&entity.WorkOrderExecution{}).Count(&execCount)
	if bomCount != 0 || woCount != 0 || itemCount != 0 || execCount != 0 {
		t.Errorf("rows after cascade: %d/%d/%d/%d, want all 0", bomCount, woCount, itemCount, execCount)
	}
}

func TestDeleteRemovesOnlyTargetAndItsEdges(t *testing.T) {
	env := setupBOMTest(t)
	material := testutil.SeedMaterial(t, env.db, "MAT-001", "Steel", decimal.NewFromInt(5))
	comp := env.createComponent(t, "Plate", material.ID)
	keeper := env.createGroup(t, "Keeper Group", nil, nil)
	doomed := env.createGroup(t, "Doomed Group", []InclusionInput{
		{IncludedBOMID: comp.ID, Quantity: decimal.NewFromInt(4)},
	}, nil)

	result, err := env.svc.DeleteBOM(env.ctx, doomed.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Deleted || len(result.DeletedWorkOrders) != 0 {
		t.Errorf("result = %+v, want clean delete with no work orders", result)
	}

	// 只删目标行和它的出边，被引用方原样保留
	var bomCount, edgeCount int64
	env.db.Model(&entity.BOM{}).Count(&bomCount)
	env.db.Model(&entity.BOMInclusion{}).Count(&edgeCount)
	if bomCount != 2 {
		t.Errorf("remaining boms = %d, want 2", bomCount)
	}
	if edgeCount != 0 {
		t.Errorf("remaining edges = %d, want 0", edgeCount)
	}
	if _, err := env.svc.GetBOMWithCost(env.ctx, comp.ID); err != nil {
		t.Errorf("included bom vanished: %v", err)
	}
	if _, err := env.svc.GetBOMWithCost(env.ctx, keeper.ID); err != nil {
		t.Errorf("unrelated bom vanished: %v", err)
	}
}

func TestSetProductLinksFullReplace(t *testing.T) {
	env := setupBOMTest(t)
	group := env.createGroup(t, "Pump Group", nil, nil)
	pa := testutil.SeedProduct(t, env.db, "PRD-A", "Pump A")
	pb := testutil.SeedProduct(t, env.db, "PRD-B", "Pump B")
	pc := testutil.SeedProduct(t, env.db, "PRD-C", "Pump C")

	if err := env.svc.SetProductLinks(env.ctx, group.ID, []string{pa.ID, pb.ID}); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.SetProductLinks(env.ctx, group.ID, []string{pb.ID, pc.ID}); err != nil {
		t.Fatal(err)
	}

	full, err := env.svc.GetBOMWithCost(env.ctx, group.ID)
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]bool)
	for _, link := range full.ProductLinks {
		got[link.ProductID] = true
	}
	if len(got) != 2 || !got[pb.ID] || !got[pc.ID] {
		t.Errorf("links after replace = %v, want exactly {%s, %s}", got, pb.ID, pc.ID)
	}
}

func TestSetProductLinksRejectsNonGroup(t *testing.T) {
	env := setupBOMTest(t)
	material := testutil.SeedMaterial(t, env.db, "MAT-001", "Steel", decimal.NewFromInt(5))
	comp := env.createComponent(t, "Plate", material.ID)
	product := testutil.SeedProduct(t, env.db, "PRD-A", "Pump A")

	err := env.svc.SetProductLinks(env.ctx, comp.ID, []string{product.ID})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("got %v, want ValidationError", err)
	}
}

func TestSetInclusionsFullReplace(t *testing.T) {
	env := setupBOMTest(t)
	material := testutil.SeedMaterial(t, env.db, "MAT-001", "Steel", decimal.NewFromInt(5))
	a := env.createComponent(t, "Plate A", material.ID)
	b := env.createComponent(t, "Plate B", material.ID)
	group := env.createGroup(t, "Pump Group", []InclusionInput{
		{IncludedBOMID: a.ID, Quantity: decimal.NewFromInt(1)},
	}, nil)

	if err := env.svc.SetInclusions(env.ctx, group.ID, []InclusionInput{
		{IncludedBOMID: b.ID, Quantity: decimal.NewFromInt(5)},
	}); err != nil {
		t.Fatal(err)
	}

	full, err := env.svc.GetBOMWithCost(env.ctx, group.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(full.Inclusions) != 1 {
		t.Fatalf("edges after replace = %d, want 1", len(full.Inclusions))
	}
	if full.Inclusions[0].IncludedBOMID != b.ID {
		t.Errorf("edge target = %s, want %s", full.Inclusions[0].IncludedBOMID, b.ID)
	}
}

func TestModelFamilyParentLink(t *testing.T) {
	env := setupBOMTest(t)

	base, err := env.svc.CreateOrUpdateBOM(env.ctx, &CreateOrUpdateBOMInput{
		Name:  "Model X",
		Level: entity.BOMLevelProduct,
	})
	if err != nil {
		t.Fatal(err)
	}

	variant, err := env.svc.CreateOrUpdateBOM(env.ctx, &CreateOrUpdateBOMInput{
		Name:     "Model X Pro",
		Level:    entity.BOMLevelProduct,
		ParentID: &base.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if variant.ParentID == nil || *variant.ParentID != base.ID {
		t.Errorf("variant parent = %v, want %s", variant.ParentID, base.ID)
	}

	// 家族链接只能指向同层级
	group := env.createGroup(t, "Some Group", nil, nil)
	_, err = env.svc.CreateOrUpdateBOM(env.ctx, &CreateOrUpdateBOMInput{
		Name:     "Model Y",
		Level:    entity.BOMLevelProduct,
		ParentID: &group.ID,
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("cross-level family link: got %v, want ValidationError", err)
	}
}

func TestListBOMsByLevel(t *testing.T) {
	env := setupBOMTest(t)
	material := testutil.SeedMaterial(t, env.db, "MAT-FC", "Filter Media", dec("8.75"))
	cartridge := env.createComponent(t, "Filter Cartridge", material.ID)
	env.createGroup(t, "Pump Group", []InclusionInput{
		{IncludedBOMID: cartridge.ID, Quantity: decimal.NewFromInt(3)},
	}, nil)
	env.createGroup(t, "Empty Group", nil, nil)

	rows, err := env.svc.ListBOMsByLevel(env.ctx, entity.BOMLevelGroup, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	byName := make(map[string]BOMWithCost, len(rows))
	for _, r := range rows {
		byName[r.Name] = r
	}
	pump := byName["Pump Group"]
	if !pump.TotalCost.Equal(dec("26.25")) || pump.ComponentCount != 1 {
		t.Errorf("Pump Group = cost %s count %d, want 26.25 and 1", pump.TotalCost, pump.ComponentCount)
	}
	empty := byName["Empty Group"]
	if !empty.TotalCost.Equal(decimal.Zero) || empty.ComponentCount != 0 {
		t.Errorf("Empty Group = cost %s count %d, want 0 and 0", empty.TotalCost, empty.ComponentCount)
	}

	if _, err := env.svc.ListBOMsByLevel(env.ctx, 7, ""); err == nil {
		t.Error("level 7 accepted, want validation error")
	}
}
