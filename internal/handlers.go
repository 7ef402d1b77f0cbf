package internal

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(400, gin.H{"error": "provided id is invalid"})
		return 0, false
	}
	return id, true
}

// ------------------- Competitions -------------------

func CreateCompetition(svc *CompetitionService, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCompetitionInput
		if err := c.BindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad json"})
			return
		}
		comp, err := svc.Create(c.Request.Context(), uid(c), req)
		if err != nil {
			fail(c, err)
			return
		}
		actor := uid(c)
		audit.Record(c.Request.Context(), &actor, "create_competition", "competition_id="+strconv.Itoa(comp.ID))
		c.JSON(201, gin.H{"competition": comp})
	}
}

func GetCompetition(svc *CompetitionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.Get(c.Request.Context(), uid(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(200, view)
	}
}

func DeleteCompetition(svc *CompetitionService, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), uid(c)); err != nil {
			fail(c, err)
			return
		}
		actor := uid(c)
		audit.Record(c.Request.Context(), &actor, "delete_competition", "")
		c.JSON(200, gin.H{"ok": true})
	}
}

func ListCompetitionInvites(svc *CompetitionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		invites, err := svc.ListInvites(c.Request.Context(), uid(c))
		if err != nil {
			fail(c, err)
			return
		}
		if invites == nil {
			invites = []Competition{}
		}
		c.JSON(200, gin.H{"length": len(invites), "competitions": invites})
	}
}

func StartCompetition(svc *CompetitionService, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		comp, err := svc.Start(c.Request.Context(), uid(c))
		if err != nil {
			fail(c, err)
			return
		}
		actor := uid(c)
		audit.Record(c.Request.Context(), &actor, "start_competition", "competition_id="+strconv.Itoa(comp.ID))
		c.JSON(200, gin.H{"competition": comp})
	}
}

func InviteUser(svc *CompetitionService, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, ok := idParam(c, "uid")
		if !ok {
			return
		}
		if err := svc.Invite(c.Request.Context(), uid(c), target); err != nil {
			fail(c, err)
			return
		}
		actor := uid(c)
		audit.Record(c.Request.Context(), &actor, "invite_user", "user_id="+strconv.Itoa(target))
		c.JSON(200, gin.H{"ok": true})
	}
}

func AcceptInvite(svc *CompetitionService, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		compID, ok := idParam(c, "cid")
		if !ok {
			return
		}
		if err := svc.Accept(c.Request.Context(), uid(c), compID); err != nil {
			fail(c, err)
			return
		}
		actor := uid(c)
		audit.Record(c.Request.Context(), &actor, "accept_invite", "competition_id="+strconv.Itoa(compID))
		c.JSON(200, gin.H{"ok": true})
	}
}

func QuitCompetition(svc *CompetitionService, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		dissolved, err := svc.Quit(c.Request.Context(), uid(c))
		if err != nil {
			fail(c, err)
			return
		}
		actor := uid(c)
		audit.Record(c.Request.Context(), &actor, "quit_competition", "dissolved="+strconv.FormatBool(dissolved))
		if dissolved {
			c.JSON(200, gin.H{"ok": true, "competition_removed": true,
				"msg": "the competition was removed because it dropped below the minimum of 3 members"})
			return
		}
		c.JSON(200, gin.H{"ok": true, "competition_removed": false})
	}
}

func RemoveUser(svc *CompetitionService, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, ok := idParam(c, "uid")
		if !ok {
			return
		}
		if err := svc.Remove(c.Request.Context(), uid(c), target); err != nil {
			fail(c, err)
			return
		}
		actor := uid(c)
		audit.Record(c.Request.Context(), &actor, "remove_user", "user_id="+strconv.Itoa(target))
		c.JSON(200, gin.H{"ok": true})
	}
}

func SaveCompetitionResult(svc *CompetitionService, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := svc.SaveResult(c.Request.Context(), uid(c))
		if err != nil {
			fail(c, err)
			return
		}
		actor := uid(c)
		audit.Record(c.Request.Context(), &actor, "save_competition_result", "winner_id="+strconv.Itoa(result.WinnerID))
		c.JSON(200, result)
	}
}

// ------------------- Users -------------------

func Me(store UnitOfWork) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := store.Users().Get(c.Request.Context(), uid(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(200, gin.H{"user": u})
	}
}

func UpdateMe(store UnitOfWork) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Description *string `json:"description"`
			FavMethod   *string `json:"fav_method"`
			AvatarURL   *string `json:"avatar_url"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad json"})
			return
		}
		u, err := store.Users().Get(c.Request.Context(), uid(c))
		if err != nil {
			fail(c, err)
			return
		}
		if req.Description != nil {
			u.Description = *req.Description
		}
		if req.FavMethod != nil {
			u.FavMethod = *req.FavMethod
		}
		if req.AvatarURL != nil {
			u.AvatarURL = *req.AvatarURL
		}
		if err := store.Users().Update(c.Request.Context(), u); err != nil {
			fail(c, err)
			return
		}
		c.JSON(200, gin.H{"user": u})
	}
}

func GetUserByID(store UnitOfWork) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "uid")
		if !ok {
			return
		}
		u, err := store.Users().Get(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		u.Email = ""
		c.JSON(200, gin.H{"user": u})
	}
}

func SearchUsers(store UnitOfWork) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := store.Users().Search(c.Request.Context(), c.Param("nickname"), 10)
		if err != nil {
			fail(c, err)
			return
		}
		for i := range users {
			users[i].Email = ""
		}
		c.JSON(200, gin.H{"length": len(users), "users": users})
	}
}

// ------------------- Catches -------------------

var validUnits = map[string]string{
	"kg":   MeasureWeight,
	"lb":   MeasureWeight,
	"cm":   MeasureLength,
	"inch": MeasureLength,
}

func AddCatch(store UnitOfWork, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name             string    `json:"name"`
			Description      string    `json:"description"`
			MeasurementType  string    `json:"measurement_type"`
			MeasurementUnit  string    `json:"measurement_unit"`
			MeasurementValue float64   `json:"measurement_value"`
			WhenCaught       time.Time `json:"when_caught"`
			Address          string    `json:"address"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad json"})
			return
		}
		if len(req.Name) < 3 || len(req.Name) > 20 {
			c.JSON(400, gin.H{"error": "fish name must be between 3 and 20 characters"})
			return
		}
		if validUnits[req.MeasurementUnit] != req.MeasurementType {
			c.JSON(400, gin.H{"error": "measurement unit does not match measurement type"})
			return
		}
		if req.MeasurementValue <= 0 {
			c.JSON(400, gin.H{"error": "measurement value must be positive"})
			return
		}
		if req.WhenCaught.IsZero() {
			c.JSON(400, gin.H{"error": "please enter the date when the fish was caught"})
			return
		}

		catch := &Catch{
			UserID:           uid(c),
			Name:             req.Name,
			Description:      req.Description,
			MeasurementType:  req.MeasurementType,
			MeasurementUnit:  req.MeasurementUnit,
			MeasurementValue: req.MeasurementValue,
			WhenCaught:       req.WhenCaught,
			Address:          req.Address,
		}
		// Record and owner counter move together.
		err := runInTx(c.Request.Context(), store, func(tx Tx) error {
			if err := tx.Catches().Insert(c.Request.Context(), catch); err != nil {
				return err
			}
			return tx.Users().AddFishAmount(c.Request.Context(), catch.UserID, 1)
		})
		if err != nil {
			fail(c, err)
			return
		}
		actor := uid(c)
		audit.Record(c.Request.Context(), &actor, "add_catch", "catch_id="+strconv.Itoa(catch.ID))
		c.JSON(201, gin.H{"catch": catch})
	}
}

func RemoveCatch(store UnitOfWork, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "fid")
		if !ok {
			return
		}
		err := runInTx(c.Request.Context(), store, func(tx Tx) error {
			catch, err := tx.Catches().Get(c.Request.Context(), id)
			if err != nil {
				return err
			}
			if catch.UserID != uid(c) {
				return Forbidden("you can only remove your own catches")
			}
			if err := tx.Catches().Delete(c.Request.Context(), id); err != nil {
				return err
			}
			return tx.Users().AddFishAmount(c.Request.Context(), catch.UserID, -1)
		})
		if err != nil {
			fail(c, err)
			return
		}
		actor := uid(c)
		audit.Record(c.Request.Context(), &actor, "remove_catch", "catch_id="+strconv.Itoa(id))
		c.JSON(204, nil)
	}
}

// ------------------- Reports -------------------

func ReportUser(store UnitOfWork, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, ok := idParam(c, "uid")
		if !ok {
			return
		}
		var req struct {
			Description string `json:"description"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad json"})
			return
		}
		if len(req.Description) < 5 || len(req.Description) > 500 {
			c.JSON(400, gin.H{"error": "description must be between 5 and 500 characters"})
			return
		}
		if _, err := store.Users().Get(c.Request.Context(), target); err != nil {
			fail(c, err)
			return
		}
		if err := store.Reports().AddReason(c.Request.Context(), target, uid(c), req.Description); err != nil {
			fail(c, err)
			return
		}
		actor := uid(c)
		audit.Record(c.Request.Context(), &actor, "report_user", "user_id="+strconv.Itoa(target))
		c.JSON(200, gin.H{"msg": "user successfully reported"})
	}
}

func GetReport(store UnitOfWork) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "rid")
		if !ok {
			return
		}
		report, err := store.Reports().Get(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(200, gin.H{"report": report})
	}
}
