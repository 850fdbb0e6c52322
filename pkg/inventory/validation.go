package inventory

import (
	"fmt"
	"math"
	"strings"
)

// ValidateUnitPrice 単価をバリデーション
func ValidateUnitPrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return NewValidationError("unit_price", "単価は有限の数値である必要があります", fmt.Sprint(price))
	}
	if price < 0 {
		return NewValidationError("unit_price", "単価は0以上である必要があります", fmt.Sprintf("%.2f", price))
	}
	return nil
}

// ValidateCurrentStock 現在在庫をバリデーション
func ValidateCurrentStock(stock int64) error {
	if stock < 0 {
		return NewValidationError("current_stock", "現在在庫は負の値にできません", fmt.Sprintf("%d", stock))
	}
	return nil
}

// ValidateStockLimits 最小・最大在庫をバリデーション
func ValidateStockLimits(minStock, maxStock int64) error {
	if minStock < 0 {
		return NewValidationError("min_stock", "最小在庫は負の値にできません", fmt.Sprintf("%d", minStock))
	}
	if maxStock < minStock {
		return NewValidationError("max_stock", "最大在庫は最小在庫以上である必要があります", fmt.Sprintf("%d < %d", maxStock, minStock))
	}
	return nil
}

// ValidateCode 識別子（商品番号・UPC・BIN）をバリデーション
func ValidateCode(field string, code Code) error {
	if !code.Defined() {
		return nil // 識別子は任意
	}
	if strings.ContainsAny(string(code), "\r\n\t") {
		return NewValidationError(field, "識別子に無効な文字が含まれています", string(code))
	}
	return nil
}

// ValidateProduct 商品全体をバリデーション
func ValidateProduct(p *Product) error {
	if p == nil {
		return NewValidationError("product", "商品が指定されていません", "nil")
	}

	if err := ValidateUnitPrice(p.UnitPrice); err != nil {
		return err
	}
	if err := ValidateCurrentStock(p.CurrentStock); err != nil {
		return err
	}
	if err := ValidateStockLimits(p.MinStock, p.MaxStock); err != nil {
		return err
	}
	if err := ValidateCode("item_number", p.ItemNumber); err != nil {
		return err
	}
	if err := ValidateCode("upc_code", p.UPCCode); err != nil {
		return err
	}
	if err := ValidateCode("bin_location", p.BinLocation); err != nil {
		return err
	}

	return nil
}
