package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"benritz/sheetsql/internal/dialect"
	"benritz/sheetsql/internal/errs"
	"benritz/sheetsql/internal/schema"
	"benritz/sheetsql/internal/sheet"
	"benritz/sheetsql/internal/sqlgen"
)

type structureRequest struct {
	dialect.ConnectionParams
	// Type is the older name of the dialect field.
	Type string `json:"type"`
}

// structure handles POST /api/database/structure
func (s *Server) structure(c *gin.Context) {
	var req structureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, errs.Malformed("invalid connection payload", err), "Invalid connection parameters")
		return
	}
	params := req.ConnectionParams
	if params.Dialect == "" {
		params.Dialect = req.Type
	}

	tables, err := s.introspector.Introspect(c.Request.Context(), params)
	if err != nil {
		s.abort(c, err, "Failed to read database structure")
		return
	}
	success(c, http.StatusOK, tables, fmt.Sprintf("Read %d tables", len(tables)))
}

// exportStructure handles POST /api/database/export
func (s *Server) exportStructure(c *gin.Context) {
	tables, ok := s.bindTables(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := sheet.WriteStructure(&buf, tables); err != nil {
		s.abort(c, err, "Failed to build structure workbook")
		return
	}
	s.attachment(c, "database_structure", "xlsx", sheet.ContentType, buf.Bytes())
}

// exportTemplate handles POST /api/database/export-template
func (s *Server) exportTemplate(c *gin.Context) {
	tables, ok := s.bindTables(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := sheet.WriteTemplate(&buf, tables); err != nil {
		s.abort(c, err, "Failed to build data template")
		return
	}
	s.attachment(c, "test_data_template", "xlsx", sheet.ContentType, buf.Bytes())
}

// generateRequest is the JSON form of generate-sql: rows arrive already decoded instead of as a workbook.
type generateRequest struct {
	DBType     string          `json:"dbType"`
	Structures json.RawMessage `json:"structures"`
	Partitions json.RawMessage `json:"partitions"`
}

// generateSQL handles POST /api/database/generate-sql, either as multipart fields file, structures
// and dbType or as a JSON generateRequest.
func (s *Server) generateSQL(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	var (
		source     string
		tag        string
		structures []byte
		partitions []sqlgen.Partition
		ok         bool
	)
	if c.ContentType() == gin.MIMEJSON {
		source = "json"
		tag, structures, partitions, ok = s.bindGenerateJSON(c)
	} else {
		source, tag, structures, partitions, ok = s.bindGenerateUpload(c)
	}
	if !ok {
		return
	}

	if len(bytes.TrimSpace(structures)) == 0 {
		s.abort(c, errs.Malformed("no table structures provided", nil), "Table structures are required")
		return
	}
	tables, err := schema.DecodeTables(bytes.NewReader(structures))
	if err != nil {
		s.abort(c, err, "Table structures could not be parsed")
		return
	}
	if tag == "" {
		tag = string(dialect.Generic)
	}
	d, err := dialect.Parse(tag)
	if err != nil {
		s.abort(c, err, "Unsupported database type")
		return
	}

	logger := s.logger.WithField("source", source)
	res := sqlgen.NewGenerator(d, sqlgen.WithGeneratorLogger(logger), sqlgen.WithClock(s.now)).Generate(partitions, tables)
	if res.Empty() {
		logger.Warn("no statements generated")
	} else {
		logger.WithField("statements", res.Statements).Info("generated insert statements")
	}
	s.attachment(c, "generated_sql", "sql", "text/plain; charset=utf-8", []byte(res.Document))
}

func (s *Server) bindGenerateJSON(c *gin.Context) (string, []byte, []sqlgen.Partition, bool) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(err) {
			s.abort(c, err, "The request body is too large")
			return "", nil, nil, false
		}
		s.abort(c, errs.Malformed("invalid generate payload", err), "Invalid generate request")
		return "", nil, nil, false
	}
	partitions, err := sqlgen.DecodePartitions(bytes.NewReader(req.Partitions))
	if err != nil {
		s.abort(c, err, "Row partitions could not be parsed")
		return "", nil, nil, false
	}
	return req.DBType, req.Structures, partitions, true
}

func (s *Server) bindGenerateUpload(c *gin.Context) (string, string, []byte, []sqlgen.Partition, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		if tooLarge(err) {
			s.abort(c, err, "The uploaded workbook is too large")
			return "", "", nil, nil, false
		}
		s.abort(c, errs.Malformed("no workbook uploaded", err), "A workbook file is required")
		return "", "", nil, nil, false
	}
	f, err := header.Open()
	if err != nil {
		s.abort(c, errs.Malformed("unreadable upload", err), "The uploaded file could not be read")
		return "", "", nil, nil, false
	}
	defer f.Close()
	partitions, err := sheet.ReadPartitions(f)
	if err != nil {
		s.abort(c, err, "The uploaded workbook could not be read")
		return "", "", nil, nil, false
	}
	return header.Filename, c.PostForm("dbType"), []byte(c.PostForm("structures")), partitions, true
}

func (s *Server) bindTables(c *gin.Context) ([]schema.Table, bool) {
	tables, err := schema.DecodeTables(c.Request.Body)
	if err != nil {
		s.abort(c, err, "Table structures could not be parsed")
		return nil, false
	}
	return tables, true
}

func (s *Server) attachment(c *gin.Context, prefix, ext, contentType string, body []byte) {
	name := fmt.Sprintf("%s_%s.%s", prefix, s.now().UTC().Format("2006-01-02"), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, body)
}

func (s *Server) abort(c *gin.Context, err error, message string) {
	_ = c.Error(err)
	fail(c, statusOf(err), err, message)
}
