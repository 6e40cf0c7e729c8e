package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	types "github.com/yungbote/studyport-backend/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: "Researcher",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedStudy creates a study owned by member with componentCount components at
// positions 1..n.
func SeedStudy(tb testing.TB, ctx context.Context, tx *gorm.DB, dirName string, member *types.User, componentCount int) *types.Study {
	tb.Helper()
	s := &types.Study{
		UUID:               uuid.NewString(),
		Title:              "study " + dirName,
		Description:        "seeded",
		Properties:         datatypes.JSON([]byte(`{"lang":"en"}`)),
		DirName:            dirName,
		AllowedWorkerTypes: datatypes.JSONSlice[string]{"general_single"},
	}
	for i := 1; i <= componentCount; i++ {
		s.Components = append(s.Components, &types.Component{
			UUID:           uuid.NewString(),
			Position:       i,
			Title:          fmt.Sprintf("component %d", i),
			Active:         true,
			AssetEntryPath: fmt.Sprintf("c%d.html", i),
			Properties:     datatypes.JSON([]byte(`{}`)),
		})
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed study: %v", err)
	}
	if member != nil {
		if err := tx.WithContext(ctx).Create(&types.StudyMember{StudyID: s.ID, UserID: member.ID}).Error; err != nil {
			tb.Fatalf("seed study member: %v", err)
		}
	}
	return s
}

func PtrUint(v uint) *uint { return &v }
