package repository

import (
	"gorm.io/gorm"

	"taskbot/internal/model"
	"taskbot/internal/orchestrator"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db}
}

func (r *TaskRepository) CreateTask(task *model.Task) error {
	return r.db.Create(task).Error
}

func (r *TaskRepository) FindTaskByID(id string) (*model.Task, error) {
	var task model.Task
	err := r.db.First(&task, "id = ?", id).Error
	return &task, err
}

func (r *TaskRepository) FindTaskByChatID(chatID string) (*model.Task, error) {
	var task model.Task
	err := r.db.First(&task, "chat_id = ?", chatID).Error
	return &task, err
}

func (r *TaskRepository) FindTaskByCommit(sha string) (*model.Task, error) {
	var task model.Task
	err := r.db.First(&task, "commit_sha = ?", sha).Error
	return &task, err
}

func (r *TaskRepository) ListTasks(page, pageSize int) ([]model.Task, int64, error) {
	var tasks []model.Task
	var total int64
	if err := r.db.Model(&model.Task{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&tasks).Error
	return tasks, total, err
}

func (r *TaskRepository) ListTasksByStatus(statuses ...model.TaskStatus) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.Where("status IN ?", statuses).Find(&tasks).Error
	return tasks, err
}

// ApplyChangeSet persists only the fields the orchestrator touched for a
// transition, keeping writes auditable instead of dumping whole rows.
func (r *TaskRepository) ApplyChangeSet(cs *orchestrator.ChangeSet) error {
	if cs == nil || len(cs.Fields) == 0 {
		return nil
	}
	return r.db.Model(&model.Task{}).
		Where("id = ?", cs.TaskID).
		Updates(cs.Fields).Error
}

func (r *TaskRepository) SetChatID(taskID, chatID string) error {
	return r.db.Model(&model.Task{}).
		Where("id = ?", taskID).
		Update("chat_id", chatID).Error
}
