package output

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/law-makers/landed/pkg/models"
)

var csvHeader = []string{
	"url", "store", "title", "price", "currency", "image", "variant", "fetch_strategy",
	"confidence_title", "confidence_price", "confidence_image", "confidence_variant",
}

// WriteCSV writes one row per record. Prices are fixed to two decimals and
// absent fields are empty cells.
func WriteCSV(w io.Writer, records []models.ProductRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, rec := range records {
		price := ""
		if rec.Price != nil {
			price = rec.Price.StringFixed(2)
		}
		row := []string{
			rec.URL, rec.Store, rec.Title, price, rec.Currency, rec.Image, rec.Variant,
			string(rec.FetchStrategy),
			strconv.FormatBool(rec.Confidence.Title),
			strconv.FormatBool(rec.Confidence.Price),
			strconv.FormatBool(rec.Confidence.Image),
			strconv.FormatBool(rec.Confidence.Variant),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// SaveCSV writes records to a CSV file. Returns an error on failure.
func SaveCSV(records []models.ProductRecord, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, records); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
