// backend/src/processors/collector.go
package processors

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/username/bullionintake/backend/src/models"
)

// Row field name prefixes as rendered by the repeater table.
const (
	rowFieldType   = "product_type"
	rowFieldUnit   = "product_unit"
	rowFieldName   = "product_name"
	rowFieldWeight = "product_weight"
	rowFieldPrice  = "product_price"
	rowFieldImage  = "product_image"
)

// CollectProductLines turns rendered rows into product lines, preserving
// row order. A row is included iff its type, name and price elements all
// exist; their values may be empty. Absent optional elements default to
// empty string / empty image list.
func CollectProductLines(rows []models.ProductRow) []models.ProductLine {
	lines := make([]models.ProductLine, 0, len(rows))
	for _, row := range rows {
		if row.Type == nil || row.Name == nil || row.Price == nil {
			continue
		}
		line := models.ProductLine{
			Type:   *row.Type,
			Name:   *row.Name,
			Price:  *row.Price,
			Images: []string{},
		}
		if row.Unit != nil {
			line.Unit = *row.Unit
		}
		if row.Weight != nil {
			line.Weight = *row.Weight
		}
		if len(row.Images) > 0 {
			line.Images = append(line.Images, row.Images...)
		}
		lines = append(lines, line)
	}
	return lines
}

// Subtotal sums the price of every included line, treating unparsable
// values as zero, and formats the result to two decimal places.
func Subtotal(products []models.ProductLine) string {
	var sum float64
	for _, line := range products {
		v, err := strconv.ParseFloat(strings.TrimSpace(line.Price), 64)
		if err != nil {
			continue
		}
		sum += v
	}
	return fmt.Sprintf("%.2f", sum)
}

// RowsFromForm reconstructs rendered rows from indexed form fields
// (product_type_0, product_name_0, ...). A key missing from the form
// means the element was absent from that row. files carries uploaded
// file names keyed by field name, in selection order; only names travel,
// never file content. Rows come back in index order.
func RowsFromForm(values url.Values, files map[string][]string) []models.ProductRow {
	maxIndex := -1
	prefixes := []string{rowFieldType, rowFieldUnit, rowFieldName, rowFieldWeight, rowFieldPrice, rowFieldImage}
	seen := func(key string) bool {
		if _, ok := values[key]; ok {
			return true
		}
		_, ok := files[key]
		return ok
	}
	for key := range values {
		if i, ok := rowIndex(key, prefixes); ok && i > maxIndex {
			maxIndex = i
		}
	}
	for key := range files {
		if i, ok := rowIndex(key, prefixes); ok && i > maxIndex {
			maxIndex = i
		}
	}

	rows := make([]models.ProductRow, 0, maxIndex+1)
	for i := 0; i <= maxIndex; i++ {
		row := models.ProductRow{
			Type:   formField(values, rowFieldType, i),
			Unit:   formField(values, rowFieldUnit, i),
			Name:   formField(values, rowFieldName, i),
			Weight: formField(values, rowFieldWeight, i),
			Price:  formField(values, rowFieldPrice, i),
		}
		imageKey := fmt.Sprintf("%s_%d", rowFieldImage, i)
		if names, ok := files[imageKey]; ok {
			row.Images = names
		}
		// Skip index gaps where no element of the row was submitted at all.
		if row.Type == nil && row.Unit == nil && row.Name == nil &&
			row.Weight == nil && row.Price == nil && !seen(imageKey) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// formField returns the value for an indexed row field, or nil when the
// key was not submitted (element absent).
func formField(values url.Values, prefix string, i int) *string {
	key := fmt.Sprintf("%s_%d", prefix, i)
	if vs, ok := values[key]; ok && len(vs) > 0 {
		v := strings.TrimSpace(vs[0])
		return &v
	}
	return nil
}

// rowIndex extracts the numeric suffix from an indexed row field name.
func rowIndex(key string, prefixes []string) (int, bool) {
	for _, prefix := range prefixes {
		rest, ok := strings.CutPrefix(key, prefix+"_")
		if !ok {
			continue
		}
		i, err := strconv.Atoi(rest)
		if err != nil || i < 0 {
			continue
		}
		return i, true
	}
	return 0, false
}
