package sandbox

import (
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/notebookgrader/grader-client/grader"
)

const (
	writeURLLifetime = 15 * time.Minute
	readURLLifetime  = time.Hour
)

type object struct {
	contentType string
	data        []byte
}

// objectClaims authorize one method on one object path
type objectClaims struct {
	jwt.StandardClaims
	Method string `json:"method"`
	Path   string `json:"path"`
}

func (s *Server) signObjectURL(ctx echo.Context, method, path string, lifetime time.Duration) (string, error) {
	// jwt checks expiry against the wall clock
	now := time.Now()
	claims := &objectClaims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(lifetime).Unix(),
		},
		Method: method,
		Path:   path,
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.Secret)
	if err != nil {
		return "", errors.Wrap(err, "signing object URL")
	}
	return baseURL(ctx) + "/objects/" + path + "?" + url.Values{"token": {ss}}.Encode(), nil
}

func (s *Server) verifyObjectURL(ctx echo.Context, path string) error {
	claims := &objectClaims{}
	_, err := jwt.ParseWithClaims(ctx.QueryParam("token"), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.opts.Secret, nil
	})
	if err != nil {
		return errHTTPForbidden
	}
	if claims.Method != ctx.Request().Method || claims.Path != path {
		return errHTTPForbidden
	}
	return nil
}

type fileAPI struct {
	s *Server
}

func registerFileAPI(g *echo.Group, s *Server) {
	api := fileAPI{s: s}

	g.GET("/"+grader.RouteFileUpload+"/:id", api.state)
	g.POST("/"+grader.RouteFileUpload+"/:id", api.action)
}

func (api fileAPI) state(ctx echo.Context) error {
	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	hw, err := api.s.lookupHomework(ctx.Param("id"))
	if err != nil {
		return err
	}
	out := grader.FileState{Readonly: hw.Readonly}
	if hw.file != nil {
		out = *hw.file
		out.Readonly = hw.Readonly
		if out.DownloadURL, err = api.s.signObjectURL(ctx, http.MethodGet, out.FilePath, readURLLifetime); err != nil {
			return err
		}
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api fileAPI) action(ctx echo.Context) error {
	var in grader.FileAction
	if err := ctx.Bind(&in); err != nil {
		return err
	}
	if err := ctx.Validate(in); err != nil {
		return err
	}

	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	hw, err := api.s.lookupHomework(ctx.Param("id"))
	if err != nil {
		return err
	}
	if hw.Readonly {
		return errHTTPForbidden
	}

	var out grader.FileActionResult
	switch in.Action {
	case grader.ActionObtainUploadURL:
		out.FilePath = "uploads/" + hw.ID + "/" + uuid.New().String()
		out.SignedURL, err = api.s.signObjectURL(ctx, http.MethodPut, out.FilePath, writeURLLifetime)

	case grader.ActionUploadComplete:
		if _, ok := api.s.objects[in.FilePath]; !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "file was not uploaded")
		}
		// the previous file is replaced
		if hw.file != nil && hw.file.FilePath != in.FilePath {
			delete(api.s.objects, hw.file.FilePath)
		}
		hw.file = &grader.FileState{
			FileName: in.FileName,
			FileType: in.FileType,
			FileDate: grader.FormatTime(api.s.now()),
			FilePath: in.FilePath,
			FileSize: in.FileSize,
		}
		out.FilePath = in.FilePath
		out.FileDate = hw.file.FileDate
		out.DownloadURL, err = api.s.signObjectURL(ctx, http.MethodGet, in.FilePath, readURLLifetime)

	case grader.ActionObtainDeletionURL:
		if hw.file == nil || hw.file.FilePath != in.FilePath {
			// nothing to delete: no URL
			return ctx.JSON(http.StatusOK, out)
		}
		out.FilePath = in.FilePath
		out.SignedURL, err = api.s.signObjectURL(ctx, http.MethodDelete, in.FilePath, writeURLLifetime)

	case grader.ActionDeletionComplete:
		if hw.file != nil && hw.file.FilePath == in.FilePath {
			hw.file = nil
		}

	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action "+in.Action)
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, out)
}

type objectAPI struct {
	s *Server
}

func registerObjectAPI(g *echo.Group, s *Server) {
	api := objectAPI{s: s}

	g.PUT("/*", api.put)
	g.GET("/*", api.get)
	g.DELETE("/*", api.delete)
}

func (api objectAPI) put(ctx echo.Context) error {
	path := ctx.Param("*")
	if err := api.s.verifyObjectURL(ctx, path); err != nil {
		return err
	}
	data, err := ioutil.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading object")
	}

	api.s.mu.Lock()
	api.s.objects[path] = object{contentType: ctx.Request().Header.Get(echo.HeaderContentType), data: data}
	api.s.mu.Unlock()

	return ctx.NoContent(http.StatusOK)
}

func (api objectAPI) get(ctx echo.Context) error {
	path := ctx.Param("*")
	if err := api.s.verifyObjectURL(ctx, path); err != nil {
		return err
	}

	api.s.mu.Lock()
	obj, ok := api.s.objects[path]
	api.s.mu.Unlock()
	if !ok {
		return errHTTPNotFound
	}

	contentType := obj.contentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return ctx.Blob(http.StatusOK, contentType, obj.data)
}

func (api objectAPI) delete(ctx echo.Context) error {
	path := ctx.Param("*")
	if err := api.s.verifyObjectURL(ctx, path); err != nil {
		return err
	}

	api.s.mu.Lock()
	delete(api.s.objects, path)
	api.s.mu.Unlock()

	return ctx.NoContent(http.StatusNoContent)
}
